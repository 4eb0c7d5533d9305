package analyzer

// Lexicon holds the keyword sets driving context-need detection and intent
// classification. All matching is case-insensitive and word-bounded, so
// entries can be single words or short phrases.
type Lexicon struct {
	// Referential markers: pronouns, demonstratives, continuation
	// connectors. Any hit means the question leans on prior turns.
	ContextMarkers []string

	TemporalKeywords   []string
	LocationalKeywords []string
	FactualKeywords    []string
	ConceptualKeywords []string
}

// DefaultLexicon returns the built-in English keyword sets.
func DefaultLexicon() Lexicon {
	return Lexicon{
		ContextMarkers: []string{
			"it", "that", "this", "those", "these", "they", "them",
			"he", "she", "him", "her",
			"that one", "this one", "the same", "the previous",
			"what about", "how about", "and also", "as well",
			"again", "earlier", "before", "you said", "you mentioned",
			"mentioned", "continue", "go on", "tell me more", "more about",
		},
		TemporalKeywords: []string{
			"when", "what time", "date", "schedule", "deadline",
			"how long", "until", "today", "tomorrow", "yesterday",
			"this week", "next week",
		},
		LocationalKeywords: []string{
			"where", "location", "place", "address", "venue", "located",
			"nearby", "directions",
		},
		FactualKeywords: []string{
			"who", "which", "how many", "how much", "list", "name",
			"number of", "amount", "total",
		},
		ConceptualKeywords: []string{
			"why", "how does", "how do", "explain", "meaning",
			"definition", "concept", "describe", "overview",
			"what is", "what are", "difference between", "compare",
		},
	}
}
