package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-docchat-be/pkg/store"
)

func newTestStore(cfg Config) (*Store, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(cfg, nil)
	s.now = func() time.Time { return now }
	return s, &now
}

func userTurn(text string) store.Turn {
	return store.Turn{Role: store.RoleUser, Text: text, Timestamp: time.Now()}
}

func TestAppendBoundsConversationLength(t *testing.T) {
	s, _ := newTestStore(Config{MaxConversationLength: 6, SessionTimeout: time.Hour})
	defer s.Close()

	for i := 0; i < 20; i++ {
		s.Append("u1", userTurn(fmt.Sprintf("msg-%d", i)))
		assert.LessOrEqual(t, s.MessageCount("u1"), 6)
	}

	turns := s.Snapshot("u1")
	require.Len(t, turns, 6)
	// Oldest turns were evicted, newest survive in order
	assert.Equal(t, "msg-14", turns[0].Text)
	assert.Equal(t, "msg-19", turns[5].Text)
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	s, now := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: 30 * time.Minute})
	defer s.Close()

	s.Append("idle", userTurn("hello"))
	s.Append("busy", userTurn("hello"))

	// 31 minutes pass, then "busy" speaks again
	*now = now.Add(31 * time.Minute)
	s.Append("busy", userTurn("still here"))

	removed := s.Sweep()
	assert.Equal(t, 1, removed)

	stats := s.Stats()
	assert.Equal(t, 1, stats.ActiveSessions)

	// Idle user comes back: brand-new session with zero turns
	assert.Empty(t, s.Snapshot("idle"))
}

func TestReadOfExpiredSessionYieldsFreshOne(t *testing.T) {
	s, now := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: 30 * time.Minute})
	defer s.Close()

	s.Append("u1", userTurn("first"))
	require.Len(t, s.Snapshot("u1"), 1)

	// No sweep has run yet, but the session is logically expired:
	// a read must not serve the stale context.
	*now = now.Add(45 * time.Minute)
	assert.Empty(t, s.Snapshot("u1"))
}

func TestClearIsIdempotent(t *testing.T) {
	s, _ := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: time.Hour})
	defer s.Close()

	s.Append("u1", userTurn("hello"))
	assert.True(t, s.Clear("u1"))
	assert.False(t, s.Clear("u1"))

	stats := s.Stats()
	assert.Equal(t, 0, stats.ActiveSessions)
	assert.Equal(t, 0, stats.TotalMessages)
}

func TestClearAllRemovesEverySession(t *testing.T) {
	s, _ := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: time.Hour})
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.Append(fmt.Sprintf("u%d", i), userTurn("hi"))
	}
	assert.Equal(t, 5, s.ClearAll())
	assert.Equal(t, 0, s.Stats().ActiveSessions)
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	s, _ := newTestStore(Config{MaxConversationLength: 10000, SessionTimeout: time.Hour})
	defer s.Close()

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.Append("shared", userTurn(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, s.MessageCount("shared"))
}

func TestExchangeAppendIsAtomic(t *testing.T) {
	s, _ := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: time.Hour})
	defer s.Close()

	s.Append("u1",
		store.Turn{Role: store.RoleUser, Text: "question"},
		store.Turn{Role: store.RoleAssistant, Text: "answer"},
	)

	turns := s.Snapshot("u1")
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleUser, turns[0].Role)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
}

func TestSweepMarksRemovedConversations(t *testing.T) {
	s, now := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: 30 * time.Minute})
	defer s.Close()

	s.Append("u1", userTurn("hello"))
	conv := s.getOrCreate("u1")

	*now = now.Add(31 * time.Minute)
	require.Equal(t, 1, s.Sweep())

	conv.mu.Lock()
	assert.True(t, conv.removed)
	conv.mu.Unlock()
}

func TestAppendRetriesWhenSweepWinsTheRace(t *testing.T) {
	s, _ := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: 30 * time.Minute})
	defer s.Close()

	// The conversation a request fetched just before locking it
	orphan := s.getOrCreate("u1")

	// The sweeper gets there first: mark and delete together, exactly as
	// Sweep does
	s.mu.Lock()
	orphan.mu.Lock()
	orphan.removed = true
	orphan.mu.Unlock()
	delete(s.conversations, "u1")
	s.mu.Unlock()

	// Committing to the orphan must be refused
	assert.False(t, s.appendTo(orphan, []store.Turn{userTurn("lost?")}))
	assert.Empty(t, orphan.turns)

	// The public path lands the exchange in a live session instead
	s.Append("u1",
		store.Turn{Role: store.RoleUser, Text: "question"},
		store.Turn{Role: store.RoleAssistant, Text: "answer"},
	)
	assert.Len(t, s.Snapshot("u1"), 2)
	assert.Empty(t, orphan.turns)
}

func TestClearMarksConversationRemoved(t *testing.T) {
	s, _ := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: time.Hour})
	defer s.Close()

	s.Append("u1", userTurn("hello"))
	conv := s.getOrCreate("u1")

	require.True(t, s.Clear("u1"))

	conv.mu.Lock()
	assert.True(t, conv.removed)
	conv.mu.Unlock()

	// A commit racing the clear moves to the fresh session
	assert.False(t, s.appendTo(conv, []store.Turn{userTurn("late")}))
	s.Append("u1", userTurn("late"))
	assert.Equal(t, 1, s.MessageCount("u1"))
}

func TestStatsEstimatesMemory(t *testing.T) {
	s, _ := newTestStore(Config{MaxConversationLength: 20, SessionTimeout: time.Hour})
	defer s.Close()

	s.Append("u1", userTurn("0123456789"))
	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalMessages)
	assert.Greater(t, stats.EstimatedMemoryBytes, int64(10))
}

func TestCloseStopsSweeperAndIsIdempotent(t *testing.T) {
	s := NewStore(Config{
		MaxConversationLength: 20,
		SessionTimeout:        time.Hour,
		SweepInterval:         10 * time.Millisecond,
	}, nil)

	s.Close()
	s.Close() // must not panic
}
