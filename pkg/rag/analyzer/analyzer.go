package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"ai-docchat-be/pkg/store"
)

// Result is the outcome of analyzing one question.
type Result struct {
	Profile        store.QueryProfile
	RewrittenQuery string
}

// Analyzer classifies questions and rewrites them for retrieval. It is a
// pure function of its inputs: no external calls, fully deterministic.
type Analyzer struct {
	contextMarkers []*regexp.Regexp
	intentMatchers []intentMatcher
	datePattern    *regexp.Regexp
	properNoun     *regexp.Regexp
	spaces         *regexp.Regexp
}

type intentMatcher struct {
	intent   store.Intent
	patterns []*regexp.Regexp
}

// Weight table: intent -> (semanticWeight, keywordWeight). Weights always
// sum to 1.0.
var intentWeights = map[store.Intent][2]float64{
	store.IntentConceptual: {0.8, 0.2},
	store.IntentFactual:    {0.7, 0.3},
	store.IntentTemporal:   {0.5, 0.5},
	store.IntentLocational: {0.5, 0.5},
	store.IntentGeneric:    {0.7, 0.3},
}

// NewAnalyzer compiles the lexicon into matchers. Intent sets are evaluated
// in a fixed priority order (temporal, locational, factual, conceptual) so
// the result is deterministic when several sets match.
func NewAnalyzer(lex Lexicon) *Analyzer {
	return &Analyzer{
		contextMarkers: compilePhrases(lex.ContextMarkers),
		intentMatchers: []intentMatcher{
			{store.IntentTemporal, compilePhrases(lex.TemporalKeywords)},
			{store.IntentLocational, compilePhrases(lex.LocationalKeywords)},
			{store.IntentFactual, compilePhrases(lex.FactualKeywords)},
			{store.IntentConceptual, compilePhrases(lex.ConceptualKeywords)},
		},
		datePattern: regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(/\d{2,4})?|(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2})\b`),
		properNoun:  regexp.MustCompile(`\b[A-Z][a-z]+(\s+[A-Z][a-z]+)*\b`),
		spaces:      regexp.MustCompile(`\s+`),
	}
}

func compilePhrases(phrases []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		compiled = append(compiled, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return compiled
}

// Analyze produces the query profile and the retrieval query for one
// question. recentHistory is the session snapshot, oldest first.
func (a *Analyzer) Analyze(question string, recentHistory []store.Turn) Result {
	cleaned := a.cleanQuestion(question)

	needsContext := a.matchesAny(cleaned, a.contextMarkers) && len(recentHistory) > 0

	intent := a.classify(cleaned)
	weights := intentWeights[intent]

	profile := store.QueryProfile{
		Intent:         intent,
		SemanticWeight: weights[0],
		KeywordWeight:  weights[1],
		NeedsContext:   needsContext,
		Entities:       a.extractEntities(cleaned),
	}

	rewritten := cleaned
	if needsContext {
		rewritten = a.rewriteWithContext(cleaned, recentHistory)
	}

	return Result{Profile: profile, RewrittenQuery: rewritten}
}

// cleanQuestion collapses whitespace runs and trims the question.
func (a *Analyzer) cleanQuestion(question string) string {
	return a.spaces.ReplaceAllString(strings.TrimSpace(question), " ")
}

func (a *Analyzer) classify(question string) store.Intent {
	for _, m := range a.intentMatchers {
		if a.matchesAny(question, m.patterns) {
			return m.intent
		}
	}
	return store.IntentGeneric
}

func (a *Analyzer) matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// extractEntities pulls dates and proper-noun runs out of the question.
// Best-effort: an empty result is normal, not an error.
func (a *Analyzer) extractEntities(question string) []string {
	var entities []string
	seen := make(map[string]bool)

	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || seen[candidate] {
			return
		}
		seen[candidate] = true
		entities = append(entities, candidate)
	}

	for _, m := range a.datePattern.FindAllString(question, -1) {
		add(m)
	}

	// Skip a capitalized first word: it is usually just sentence case.
	for _, m := range a.properNoun.FindAllStringIndex(question, -1) {
		if m[0] == 0 {
			continue
		}
		add(question[m[0]:m[1]])
	}

	return entities
}

// rewriteWithContext prepends a condensed form of the most recent turns so
// the retrieval query carries the referent the question points at.
func (a *Analyzer) rewriteWithContext(question string, history []store.Turn) string {
	recent := history
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}

	var sb strings.Builder
	for _, turn := range recent {
		label := "User"
		if turn.Role == store.RoleAssistant {
			label = "Assistant"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", label, condense(turn.Text, 160)))
	}
	sb.WriteString("Current question: ")
	sb.WriteString(question)
	return sb.String()
}

// condense truncates text to at most max runes, marking the cut.
func condense(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
