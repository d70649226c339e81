package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/mager/heschl/heschl"
)

const embeddingsSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	dataset TEXT NOT NULL,
	model   TEXT NOT NULL,
	key     TEXT NOT NULL,
	vector  DOUBLE PRECISION[] NOT NULL,
	PRIMARY KEY (dataset, model, key)
)`

// EmbeddingStore caches computed embeddings per (dataset, model) so a
// rebuild only pays for rows it has not seen.
type EmbeddingStore struct {
	db *sql.DB
}

func ProvideEmbeddingStore(db *sql.DB) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

var StoreOptions = ProvideEmbeddingStore

// Enabled reports whether a database is behind the store.
func (s *EmbeddingStore) Enabled() bool {
	return s != nil && s.db != nil
}

// Init creates the embeddings table.
func (s *EmbeddingStore) Init(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	_, err := s.db.ExecContext(ctx, embeddingsSchema)
	if err != nil {
		return fmt.Errorf("embeddings schema: %w", err)
	}
	return nil
}

// Load returns the cached embeddings for a dataset/model pair, keyed by
// track key.
func (s *EmbeddingStore) Load(ctx context.Context, dataset, model string) (map[string]heschl.Embedding, error) {
	out := make(map[string]heschl.Embedding)
	if !s.Enabled() {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, vector FROM embeddings WHERE dataset = $1 AND model = $2`, dataset, model)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var vec pq.Float64Array
		if err := rows.Scan(&key, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		v := make([]float32, len(vec))
		for i, f := range vec {
			v[i] = float32(f)
		}
		out[key] = heschl.Embedding{Key: key, Model: model, Vector: v}
	}
	return out, rows.Err()
}

// Save upserts freshly computed embeddings.
func (s *EmbeddingStore) Save(ctx context.Context, dataset string, embs []heschl.Embedding) error {
	if !s.Enabled() || len(embs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (dataset, model, key, vector)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dataset, model, key) DO UPDATE SET vector = EXCLUDED.vector`)
	if err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	defer stmt.Close()

	for _, e := range embs {
		vec := make(pq.Float64Array, len(e.Vector))
		for i, f := range e.Vector {
			vec[i] = float64(f)
		}
		if _, err := stmt.ExecContext(ctx, dataset, e.Model, e.Key, vec); err != nil {
			return fmt.Errorf("save embedding %q: %w", e.Key, err)
		}
	}
	return tx.Commit()
}
