package dto

// SessionStatsResponse reports the in-memory conversation store state.
type SessionStatsResponse struct {
	ActiveSessions       int   `json:"active_sessions"`
	TotalMessages        int   `json:"total_messages"`
	EstimatedMemoryBytes int64 `json:"estimated_memory_bytes"`
}

type ClearSessionResponse struct {
	UserID  string `json:"user_id"`
	Cleared bool   `json:"cleared"`
}

type ClearAllSessionsResponse struct {
	ClearedSessions int `json:"cleared_sessions"`
}
