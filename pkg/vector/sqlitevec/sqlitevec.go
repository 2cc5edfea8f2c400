// Package sqlitevec provides a SQLite-backed vector collection using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/meridianlabs/mnemo/pkg/embeddings"
	"github.com/meridianlabs/mnemo/pkg/vector"
)

// Collection implements vector.Collection using SQLite with sqlite-vec.
type Collection struct {
	db       *sql.DB
	embedder embeddings.Embedder
	name     string
	logger   *slog.Logger
}

// Config holds configuration for the sqlite-vec collection.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Name is the collection name; it prefixes the backing tables so several
	// collections (episodic, semantic) can share one database file.
	Name string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint

	// Embedder generates embeddings for stored and queried text.
	Embedder embeddings.Embedder

	// Logger is the injected slog logger.
	Logger *slog.Logger
}

// NewCollection creates a sqlite-vec backed collection, creating the backing
// tables if needed.
func NewCollection(c Config) (*Collection, error) {
	// enable connections to have the sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	col := &Collection{
		db:       db,
		embedder: c.Embedder,
		name:     c.Name,
		logger:   c.Logger,
	}

	// Document table: string IDs, text, JSON metadata, and salience broken
	// out into its own column so range filters run in SQL.
	createDocs := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			text TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			salience REAL NOT NULL DEFAULT 0
		)
	`, c.Name)
	if _, err := db.Exec(createDocs); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	// vec0 virtual table for vector storage and KNN queries. Rowids mirror
	// the document table's rowids.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Name, c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	c.Logger.Info("sqlite-vec collection initialized",
		"db_path", c.DBPath,
		"collection", c.Name,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return col, nil
}

// AddTexts embeds and stores documents, replacing any with the same ID.
func (c *Collection) AddTexts(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	// Embed outside the transaction; the external call must not hold locks.
	blobs := make([][]byte, len(docs))
	for i, doc := range docs {
		emb, err := c.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("%w: embedding document %q: %v", vector.ErrEmbedding, doc.ID, err)
		}
		blob, err := serializeFloat32(emb)
		if err != nil {
			return err
		}
		blobs[i] = blob
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
		}

		var rowid int64
		err = tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s_documents WHERE doc_id = ?`, c.name),
			doc.ID,
		).Scan(&rowid)

		switch {
		case err == sql.ErrNoRows:
			res, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s_documents (doc_id, text, metadata, salience) VALUES (?, ?, ?, ?)`, c.name),
				doc.ID, doc.Text, string(meta), salienceOf(doc.Metadata),
			)
			if err != nil {
				return fmt.Errorf("inserting document %q: %w", doc.ID, err)
			}
			rowid, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("reading rowid for %q: %w", doc.ID, err)
			}

		case err != nil:
			return fmt.Errorf("looking up document %q: %w", doc.ID, err)

		default:
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s_documents SET text = ?, metadata = ?, salience = ? WHERE rowid = ?`, c.name),
				doc.Text, string(meta), salienceOf(doc.Metadata), rowid,
			); err != nil {
				return fmt.Errorf("updating document %q: %w", doc.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s_embeddings WHERE rowid = ?`, c.name),
				rowid,
			); err != nil {
				return fmt.Errorf("clearing embedding for %q: %w", doc.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s_embeddings (rowid, embedding) VALUES (?, ?)`, c.name),
			rowid, blobs[i],
		); err != nil {
			return fmt.Errorf("inserting embedding for %q: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// SimilaritySearch embeds the query and runs a KNN search, optionally
// narrowed by a salience range filter.
func (c *Collection) SimilaritySearch(ctx context.Context, query string, topK int, filter *vector.Filter) ([]vector.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, vector.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 10
	}

	emb, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", vector.ErrEmbedding, err)
	}
	blob, err := serializeFloat32(emb)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT d.doc_id, d.text, d.metadata, e.distance
		FROM %s_embeddings e
		JOIN %s_documents d ON d.rowid = e.rowid
		WHERE e.embedding MATCH ? AND e.k = ?`, c.name, c.name)
	args := []any{blob, topK}
	if filter != nil && filter.MinSalience != nil {
		q += ` AND d.salience >= ?`
		args = append(args, *filter.MinSalience)
	}
	q += ` ORDER BY e.distance`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var (
			doc      vector.Document
			metaJSON string
			distance float64
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for %q: %w", doc.ID, err)
		}
		results = append(results, vector.QueryResult{
			Document: doc,
			// Cosine distance -> similarity.
			Score: float32(1 - distance),
		})
	}

	return results, rows.Err()
}

// Scan returns documents matching the filter without similarity ranking.
func (c *Collection) Scan(ctx context.Context, filter vector.Filter, limit int) ([]vector.Document, error) {
	if limit <= 0 {
		limit = 100
	}

	q := fmt.Sprintf(`SELECT doc_id, text, metadata FROM %s_documents`, c.name)
	var args []any
	if filter.MinSalience != nil {
		q += ` WHERE salience >= ?`
		args = append(args, *filter.MinSalience)
	}
	q += ` ORDER BY rowid LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// Get retrieves documents by their IDs.
func (c *Collection) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := fmt.Sprintf(`SELECT doc_id, text, metadata FROM %s_documents WHERE doc_id IN (%s)`, c.name, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("getting documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// Delete removes documents and their embeddings by ID.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		var rowid int64
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT rowid FROM %s_documents WHERE doc_id = ?`, c.name), id,
		).Scan(&rowid)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("looking up document %q: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s_embeddings WHERE rowid = ?`, c.name), rowid,
		); err != nil {
			return fmt.Errorf("deleting embedding for %q: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s_documents WHERE rowid = ?`, c.name), rowid,
		); err != nil {
			return fmt.Errorf("deleting document %q: %w", id, err)
		}
	}

	return tx.Commit()
}

// Close closes the database. The embedder is owned by the caller.
func (c *Collection) Close() error {
	return c.db.Close()
}

func collectDocuments(rows *sql.Rows) ([]vector.Document, error) {
	var docs []vector.Document
	for rows.Next() {
		var (
			doc      vector.Document
			metaJSON string
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for %q: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func salienceOf(metadata map[string]any) float64 {
	if metadata == nil {
		return 0
	}
	if v, ok := metadata["salience"].(float64); ok {
		return v
	}
	return 0
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) ([]byte, error) {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// Ensure Collection implements vector.Collection
var _ vector.Collection = (*Collection)(nil)
