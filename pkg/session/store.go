package session

import (
	"log"
	"sync"
	"time"

	"ai-docchat-be/pkg/store"
)

// Config encapsulates session lifecycle parameters
type Config struct {
	MaxConversationLength int           // max turns kept per session
	SessionTimeout        time.Duration // idle time before a session expires
	SweepInterval         time.Duration // how often the background sweep runs
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		MaxConversationLength: 20,
		SessionTimeout:        30 * time.Minute,
		SweepInterval:         5 * time.Minute,
	}
}

// Stats is a point-in-time snapshot of store counters. It is best-effort:
// concurrent mutations may or may not be reflected.
type Stats struct {
	ActiveSessions       int   `json:"active_sessions"`
	TotalMessages        int   `json:"total_messages"`
	EstimatedMemoryBytes int64 `json:"estimated_memory_bytes"`
}

// conversation holds the per-user dialogue state. Turn mutation is
// serialized by the conversation's own mutex so unrelated users never
// contend with each other.
type conversation struct {
	mu           sync.Mutex
	userID       string
	turns        []store.Turn
	createdAt    time.Time
	lastActiveAt time.Time

	// removed is set under mu when the conversation leaves the map, so a
	// caller that raced a sweep or clear never commits to an orphan.
	removed bool
}

// Store owns all in-memory conversation sessions. Membership of the
// session map is guarded by an RWMutex; everything inside a session is
// guarded by that session's mutex. Only ClearAll takes the whole map
// exclusively.
type Store struct {
	cfg    Config
	logger *log.Logger

	mu            sync.RWMutex
	conversations map[string]*conversation

	now func() time.Time

	stopSweep chan struct{}
	closeOnce sync.Once
}

// NewStore creates a session store and starts its background sweep.
// Call Close at teardown to stop the sweeper deterministically.
func NewStore(cfg Config, logger *log.Logger) *Store {
	if cfg.MaxConversationLength <= 0 {
		cfg.MaxConversationLength = DefaultConfig().MaxConversationLength
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultConfig().SessionTimeout
	}

	s := &Store{
		cfg:           cfg,
		logger:        logger,
		conversations: make(map[string]*conversation),
		now:           time.Now,
		stopSweep:     make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go s.runSweeper()
	}

	return s
}

// getOrCreate returns the live session for userID, creating one atomically
// if none exists. A session found idle past the timeout is removed first so
// stale context is never served between sweep ticks.
func (s *Store) getOrCreate(userID string) *conversation {
	now := s.now()

	s.mu.RLock()
	conv, ok := s.conversations[userID]
	s.mu.RUnlock()

	if ok && !s.expired(conv, now) {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock: another request may have created or
	// replaced the session while we upgraded.
	conv, ok = s.conversations[userID]
	if ok {
		conv.mu.Lock()
		if now.Sub(conv.lastActiveAt) <= s.cfg.SessionTimeout {
			conv.mu.Unlock()
			return conv
		}
		conv.removed = true
		conv.mu.Unlock()
	}

	conv = &conversation{
		userID:       userID,
		createdAt:    now,
		lastActiveAt: now,
	}
	s.conversations[userID] = conv
	return conv
}

// expired reports whether conv has been idle past the timeout.
func (s *Store) expired(conv *conversation, now time.Time) bool {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return now.Sub(conv.lastActiveAt) > s.cfg.SessionTimeout
}

// Snapshot returns a copy of the user's current turns, oldest first,
// creating the session if needed. No internal slice ever escapes.
func (s *Store) Snapshot(userID string) []store.Turn {
	for {
		conv := s.getOrCreate(userID)

		conv.mu.Lock()
		if conv.removed {
			// Lost a race with the sweeper; fetch a live session
			conv.mu.Unlock()
			continue
		}

		turns := make([]store.Turn, len(conv.turns))
		copy(turns, conv.turns)
		conv.mu.Unlock()
		return turns
	}
}

// MessageCount returns the number of turns currently held for userID
// without creating a session.
func (s *Store) MessageCount(userID string) int {
	s.mu.RLock()
	conv, ok := s.conversations[userID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	return len(conv.turns)
}

// Append records one or more turns for userID in a single critical
// section, so a user+assistant exchange is committed atomically. The
// conversation is trimmed from the front until it fits the configured
// bound, and lastActiveAt is bumped.
func (s *Store) Append(userID string, turns ...store.Turn) {
	if len(turns) == 0 {
		return
	}

	for {
		conv := s.getOrCreate(userID)
		if s.appendTo(conv, turns) {
			return
		}
		// The sweeper removed the session between getOrCreate and the
		// lock; retry against a live one so the exchange is never lost.
	}
}

// appendTo commits turns to conv, reporting false if conv has already
// been removed from the map.
func (s *Store) appendTo(conv *conversation, turns []store.Turn) bool {
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if conv.removed {
		return false
	}

	conv.turns = append(conv.turns, turns...)
	if overflow := len(conv.turns) - s.cfg.MaxConversationLength; overflow > 0 {
		// Evict oldest turns. Copy into a fresh slice so the backing
		// array does not pin evicted texts.
		kept := make([]store.Turn, s.cfg.MaxConversationLength)
		copy(kept, conv.turns[overflow:])
		conv.turns = kept
	}
	conv.lastActiveAt = s.now()
	return true
}

// Clear removes the user's session entirely. The next Snapshot or Append
// starts a brand-new session. Returns whether a session existed.
func (s *Store) Clear(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[userID]
	if ok {
		conv.mu.Lock()
		conv.removed = true
		conv.mu.Unlock()
		delete(s.conversations, userID)
	}
	return ok
}

// ClearAll removes every session. Administrative path; briefly blocks all
// other operations.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.conversations)
	for _, conv := range s.conversations {
		conv.mu.Lock()
		conv.removed = true
		conv.mu.Unlock()
	}
	s.conversations = make(map[string]*conversation)
	return n
}

// Stats returns best-effort counters over the live sessions.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	convs := make([]*conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		convs = append(convs, conv)
	}
	s.mu.RUnlock()

	stats := Stats{ActiveSessions: len(convs)}
	for _, conv := range convs {
		conv.mu.Lock()
		stats.TotalMessages += len(conv.turns)
		for _, t := range conv.turns {
			// Rough estimate: text bytes plus fixed per-turn overhead.
			stats.EstimatedMemoryBytes += int64(len(t.Text)) + 64
		}
		conv.mu.Unlock()
	}
	return stats
}

// Sweep removes every session idle past the timeout and returns how many
// were removed. It is also invoked periodically by the background sweeper.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.RLock()
	var expiredIDs []string
	for id, conv := range s.conversations {
		if s.expired(conv, now) {
			expiredIDs = append(expiredIDs, id)
		}
	}
	s.mu.RUnlock()

	if len(expiredIDs) == 0 {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for _, id := range expiredIDs {
		conv, ok := s.conversations[id]
		if !ok {
			continue
		}
		// A request may have revived the session between the scan and
		// this point; only remove if it is still expired. The removed
		// mark and the map delete happen together so an in-flight append
		// can detect the loss and retry.
		conv.mu.Lock()
		if now.Sub(conv.lastActiveAt) > s.cfg.SessionTimeout {
			conv.removed = true
			delete(s.conversations, id)
			removed++
		}
		conv.mu.Unlock()
	}
	s.mu.Unlock()

	if removed > 0 && s.logger != nil {
		s.logger.Printf("[SWEEP] Removed %d expired sessions", removed)
	}
	return removed
}

func (s *Store) runSweeper() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopSweep:
			return
		}
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopSweep)
	})
}
