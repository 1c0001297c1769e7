package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

// SQLiteVectorStore stores embeddings as JSON arrays and ranks them by brute
// force cosine similarity. The associative memory of one companion stays
// small enough for a full scan.
type SQLiteVectorStore struct {
	db *sql.DB
}

func (s *SQLiteVectorStore) Insert(ctx context.Context, r *domain.VectorRecord) error {
	if r.ID.IsZero() {
		return fmt.Errorf("insert vector: missing id")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	emb, err := json.Marshal(r.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	meta, err := json.Marshal(r.Meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vectors (id, text, meta, embedding, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.Text, string(meta), string(emb), r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert vector: %w", err)
	}
	return nil
}

func (s *SQLiteVectorStore) Search(ctx context.Context, embedding []float32, k int) ([]domain.VectorWithScore, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, meta, embedding, created_at FROM vectors ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("scan vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []domain.VectorWithScore
	for rows.Next() {
		var (
			rec                      domain.VectorRecord
			id, meta, emb, createdAt string
		)
		if err := rows.Scan(&id, &rec.Text, &meta, &emb, &createdAt); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		parsed, err := ulid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse vector id %q: %w", id, err)
		}
		rec.ID = parsed
		if err := json.Unmarshal([]byte(emb), &rec.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", rec.ID, err)
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &rec.Meta); err != nil {
				return nil, fmt.Errorf("decode meta %s: %w", rec.ID, err)
			}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		results = append(results, domain.VectorWithScore{
			VectorRecord: rec,
			Score:        Cosine(embedding, rec.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *SQLiteVectorStore) DeleteMatching(ctx context.Context, substr string) (int64, error) {
	if strings.TrimSpace(substr) == "" {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE instr(lower(text), lower(?)) > 0`, substr)
	if err != nil {
		return 0, fmt.Errorf("delete vectors: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteVectorStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vectors`)
	if err != nil {
		return 0, fmt.Errorf("clear vectors: %w", err)
	}
	return res.RowsAffected()
}

// Cosine returns dot(a,b) / (|a||b| + 1e-9). Vectors of different length
// score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return float32(dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-9))
}
