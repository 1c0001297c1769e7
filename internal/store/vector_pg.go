package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

// PGVectorStore ranks associative memory with pgvector's cosine distance.
type PGVectorStore struct {
	db *pgxpool.Pool
}

func NewPGVectorStore(db *pgxpool.Pool) *PGVectorStore {
	return &PGVectorStore{db: db}
}

func (s *PGVectorStore) Insert(ctx context.Context, r *domain.VectorRecord) error {
	if r.ID.IsZero() {
		return fmt.Errorf("insert vector: missing id")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(r.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO associative_memory (id, text, meta, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.ID.String(), r.Text, meta, pgvector.NewVector(r.Embedding), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vector: %w", err)
	}
	return nil
}

func (s *PGVectorStore) Search(ctx context.Context, embedding []float32, k int) ([]domain.VectorWithScore, error) {
	if k <= 0 {
		k = 5
	}
	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(ctx,
		`SELECT id, text, meta, embedding, created_at, 1 - (embedding <=> $1) AS score
		 FROM associative_memory
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, k,
	)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	defer rows.Close()

	var results []domain.VectorWithScore
	for rows.Next() {
		var (
			r     domain.VectorWithScore
			id    string
			meta  []byte
			emb   pgvector.Vector
			score float64
		)
		if err := rows.Scan(&id, &r.Text, &meta, &emb, &r.CreatedAt, &score); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		parsed, err := ulid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse vector id %q: %w", id, err)
		}
		r.ID = parsed
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Meta); err != nil {
				return nil, fmt.Errorf("decode meta %s: %w", r.ID, err)
			}
		}
		r.Embedding = emb.Slice()
		r.Score = float32(score)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PGVectorStore) DeleteMatching(ctx context.Context, substr string) (int64, error) {
	if strings.TrimSpace(substr) == "" {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM associative_memory WHERE strpos(lower(text), lower($1)) > 0`, substr)
	if err != nil {
		return 0, fmt.Errorf("delete vectors: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PGVectorStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM associative_memory`)
	if err != nil {
		return 0, fmt.Errorf("clear vectors: %w", err)
	}
	return tag.RowsAffected(), nil
}
