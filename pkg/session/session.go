// Package session provides the working-memory tier of the mnemo system: an
// in-process, thread-safe store of conversation sessions with LRU capacity
// eviction and TTL-based expiry.
//
// Sessions are owned exclusively by the Store and mutated only through its
// API. Callers always receive snapshot copies; nothing outside the store
// holds a live reference to its internal state. The store is the only shared
// mutable in-memory resource in the system and is never persisted.
package session

import "time"

// Turn is a single user/assistant exchange in a session's ledger.
// Turns are immutable once appended; only window truncation removes them.
type Turn struct {
	// Number is the 1-based position of the turn in the session. It keeps
	// incrementing even after older turns fall out of the sliding window,
	// so numbers are never reused.
	Number int `json:"turn_number"`

	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	Timestamp        time.Time `json:"timestamp"`

	// Metadata carries optional per-turn annotations (citations, intent, ...).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Session is a point-in-time snapshot of one conversation's working memory.
type Session struct {
	ID           string    `json:"session_id"`
	Turns        []Turn    `json:"turns"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`

	// TurnCount is the total number of turns ever appended, including turns
	// that have since been truncated from the window.
	TurnCount int `json:"turn_count"`
}

// Stats summarizes store occupancy.
type Stats struct {
	Total       int     `json:"total_sessions"`
	Max         int     `json:"max_sessions"`
	Utilization float64 `json:"utilization"`
}
