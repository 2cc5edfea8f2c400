// Package eventstream defines transport-neutral events emitted when facts
// move through the memory tiers, and the publisher interface backends
// implement.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianlabs/mnemo/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeFactDistilled is emitted after a fact is written to the
	// episodic tier.
	EventTypeFactDistilled = "mnemo.fact.distilled"

	// EventTypeFactPromoted is emitted after a fact is copied into the
	// semantic tier.
	EventTypeFactPromoted = "mnemo.fact.promoted"
)

// FactEvent is a transport-neutral event payload for a fact entering a tier.
type FactEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// Tier is the tier the fact entered: "episodic" or "semantic".
	Tier string `json:"tier"`

	// SessionID is set for distilled facts; empty for promoted ones.
	SessionID string `json:"session_id,omitempty"`

	Fact memory.Fact `json:"fact"`
}

// NewFactDistilledEvent builds an event for a fact written to the episodic
// tier.
func NewFactDistilledEvent(fact memory.Fact) *FactEvent {
	return &FactEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeFactDistilled,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Tier:          "episodic",
		SessionID:     fact.Metadata.SessionID,
		Fact:          fact,
	}
}

// NewFactPromotedEvent builds an event for a fact copied into the semantic
// tier.
func NewFactPromotedEvent(fact memory.Fact) *FactEvent {
	return &FactEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeFactPromoted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Tier:          "semantic",
		Fact:          fact,
	}
}
