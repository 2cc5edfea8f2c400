// Package memory provides the durable fact layer of the mnemo system: the
// episodic and semantic tiers, the fact data model, and deduplication.
//
// Facts are distilled, persistent knowledge derived from conversations, not
// raw messages. They are created in the episodic tier by the distillation
// pipeline and copied (never moved) into the semantic tier by the promotion
// pipeline. Episodic facts carry session provenance and expire via the
// backend's own TTL; semantic facts are permanent, verified, and have no
// session affinity.
//
// Tiers are value stores: facts are identified by ID, and every pipeline
// stage re-reads what it needs rather than holding live references across
// stages.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// FactType discriminates how a fact entered its tier.
type FactType string

const (
	// FactTypeDistilled marks a fact created by the distillation pipeline.
	FactTypeDistilled FactType = "distilled"

	// FactTypePromoted marks a semantic-tier copy created by promotion.
	FactTypePromoted FactType = "promoted"
)

// Source types recorded in fact provenance.
const (
	SourceConversation = "conversation"
	SourcePromotion    = "em_promotion"
)

// Provenance records where a fact came from.
type Provenance struct {
	// SourceType is "conversation" for distilled facts and "em_promotion"
	// for semantic copies.
	SourceType string `json:"source_type"`

	// SourceSession is the originating session. For promoted facts this is
	// the only remaining session reference; the session_id key itself is
	// stripped at promotion time.
	SourceSession string `json:"source_session,omitempty"`

	// SourceTurns are the turn numbers the fact was distilled from.
	SourceTurns []int `json:"source_turns,omitempty"`

	// OriginalTimestamp preserves the episodic creation time on the
	// semantic copy.
	OriginalTimestamp time.Time `json:"original_timestamp,omitzero"`

	// PromotedFromEM is true on every semantic copy.
	PromotedFromEM bool `json:"promoted_from_em,omitempty"`
}

// Metadata is the tagged fact payload. Every field here is read by some
// pipeline stage; anything else a backend stores alongside is ignored.
type Metadata struct {
	// SessionID scopes an episodic fact to its originating session.
	// Empty on semantic-tier facts.
	SessionID string `json:"session_id,omitempty"`

	// EntityTags are the entities the fact mentions (clients, products,
	// jurisdictions).
	EntityTags []string `json:"entity_tags,omitempty"`

	// Salience in [0,1] estimates long-term importance. Monotonically
	// non-decreasing while the fact resides in the episodic tier.
	Salience float64 `json:"salience"`

	// CitationCount is how often the fact has been cited in answers.
	// Monotonically non-decreasing; promotion never lowers it.
	CitationCount int `json:"citation_count"`

	// Timestamp is the fact's creation time in its tier.
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Verified is set on promoted facts.
	Verified bool `json:"verified,omitempty"`

	// FactType discriminates distilled from promoted facts.
	FactType FactType `json:"fact_type,omitempty"`

	// PromotedAt stamps when the semantic copy was written.
	PromotedAt time.Time `json:"promoted_at,omitzero"`

	Provenance Provenance `json:"provenance"`
}

// Fact is a distilled piece of knowledge in either memory tier.
type Fact struct {
	// ID is unique within the fact's tier. A promoted fact is a new entity:
	// its semantic ID is distinct from the episodic original's.
	ID string `json:"id"`

	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// NewFactID returns a fresh tier-unique fact identifier.
func NewFactID() string {
	return uuid.NewString()
}

// Match pairs a stored fact with a similarity score from a search.
type Match struct {
	Fact  Fact    `json:"fact"`
	Score float32 `json:"score"`
}
