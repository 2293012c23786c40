package models

// SessionSummary is one row in the session history list as returned by the
// backend. Timestamps are ISO-8601 strings and may be absent; RelevanceScore
// is only present on search and similar-session results.
type SessionSummary struct {
	SessionID      string   `json:"session_id"`
	StartedAt      *string  `json:"started_at,omitempty"`
	CreatedAt      *string  `json:"created_at,omitempty"`
	MessageCount   int      `json:"message_count"`
	Preview        *string  `json:"preview,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

// Entity is a knowledge-graph entity mentioned in a session.
type Entity struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Message is a single chat message in a session transcript.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SessionDetails is the lazily fetched detail payload for a single session.
// Cached per session ID for the lifetime of the UI session.
type SessionDetails struct {
	Entities []Entity  `json:"entities"`
	Messages []Message `json:"messages"`
}

// StatsSummary aggregates session counts across the backend store.
type StatsSummary struct {
	TotalSessions    int `json:"total_sessions"`
	ActiveSessions   int `json:"active_sessions"`
	ArchivedSessions int `json:"archived_sessions"`
	CurrentlyLoaded  int `json:"currently_loaded"`
}
