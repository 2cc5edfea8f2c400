package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/meridianlabs/mnemo/pkg/vector"
)

// Tier wraps a vector collection with the fact data model. The episodic and
// semantic tiers are both Tiers over different collections; the pipelines
// decide what flows between them.
type Tier struct {
	collection vector.Collection
	name       string
	logger     *slog.Logger
}

// NewTier wraps the given collection. Name is used only for logging.
func NewTier(collection vector.Collection, name string, logger *slog.Logger) *Tier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tier{
		collection: collection,
		name:       name,
		logger:     logger,
	}
}

// Name returns the tier's name.
func (t *Tier) Name() string {
	return t.name
}

// Add embeds and stores facts. A fact with an existing ID is replaced.
func (t *Tier) Add(ctx context.Context, facts ...Fact) error {
	if len(facts) == 0 {
		return nil
	}

	docs := make([]vector.Document, 0, len(facts))
	for _, fact := range facts {
		if fact.Text == "" {
			return fmt.Errorf("%w: fact %q", ErrEmptyFact, fact.ID)
		}
		doc, err := documentFromFact(fact)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	if err := t.collection.AddTexts(ctx, docs); err != nil {
		return fmt.Errorf("adding facts to %s tier: %w", t.name, err)
	}

	t.logger.Debug("facts stored", "tier", t.name, "count", len(facts))
	return nil
}

// Search finds the topK facts most similar to the query text. A nil filter
// matches everything.
func (t *Tier) Search(ctx context.Context, query string, topK int, filter *vector.Filter) ([]Match, error) {
	results, err := t.collection.SimilaritySearch(ctx, query, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("searching %s tier: %w", t.name, err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		fact, err := factFromDocument(res.Document)
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{Fact: fact, Score: res.Score})
	}
	return matches, nil
}

// ScanBySalience returns up to limit facts whose salience is at least min,
// without similarity ranking.
func (t *Tier) ScanBySalience(ctx context.Context, min float64, limit int) ([]Fact, error) {
	docs, err := t.collection.Scan(ctx, vector.Filter{MinSalience: &min}, limit)
	if err != nil {
		return nil, fmt.Errorf("scanning %s tier: %w", t.name, err)
	}
	return factsFromDocuments(docs)
}

// Get retrieves facts by ID. Unknown IDs are skipped.
func (t *Tier) Get(ctx context.Context, ids ...string) ([]Fact, error) {
	docs, err := t.collection.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("getting facts from %s tier: %w", t.name, err)
	}
	return factsFromDocuments(docs)
}

// GetOne retrieves a single fact, returning ErrFactNotFound if absent.
func (t *Tier) GetOne(ctx context.Context, id string) (Fact, error) {
	facts, err := t.Get(ctx, id)
	if err != nil {
		return Fact{}, err
	}
	if len(facts) == 0 {
		return Fact{}, fmt.Errorf("%w: %s in %s tier", ErrFactNotFound, id, t.name)
	}
	return facts[0], nil
}

// Delete removes facts by ID.
func (t *Tier) Delete(ctx context.Context, ids ...string) error {
	if err := t.collection.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting facts from %s tier: %w", t.name, err)
	}
	return nil
}

// Close closes the underlying collection.
func (t *Tier) Close() error {
	return t.collection.Close()
}

// documentFromFact flattens the tagged metadata into the open payload the
// collection drivers store. Times travel as RFC 3339 strings through the
// JSON round trip.
func documentFromFact(fact Fact) (vector.Document, error) {
	raw, err := json.Marshal(fact.Metadata)
	if err != nil {
		return vector.Document{}, fmt.Errorf("marshaling metadata for %q: %w", fact.ID, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return vector.Document{}, fmt.Errorf("flattening metadata for %q: %w", fact.ID, err)
	}

	return vector.Document{
		ID:       fact.ID,
		Text:     fact.Text,
		Metadata: payload,
	}, nil
}

// factFromDocument rebuilds the tagged metadata from the stored payload.
// Unknown payload keys are dropped.
func factFromDocument(doc vector.Document) (Fact, error) {
	raw, err := json.Marshal(doc.Metadata)
	if err != nil {
		return Fact{}, fmt.Errorf("marshaling payload for %q: %w", doc.ID, err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Fact{}, fmt.Errorf("decoding metadata for %q: %w", doc.ID, err)
	}

	return Fact{
		ID:       doc.ID,
		Text:     doc.Text,
		Metadata: meta,
	}, nil
}

func factsFromDocuments(docs []vector.Document) ([]Fact, error) {
	facts := make([]Fact, 0, len(docs))
	for _, doc := range docs {
		fact, err := factFromDocument(doc)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	return facts, nil
}
