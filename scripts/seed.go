//go:build ignore

// Seed script for creating a demo companion.
// Run with: go run ./scripts/seed.go
//
// Writes into the store selected by STORE_DRIVER (sqlite or postgres).
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harshitk-cp/kindred/internal/config"
	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/store"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx := context.Background()

	var s domain.SnapshotStore
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx, 0); err != nil {
			log.Fatalf("Failed to migrate: %v", err)
		}
		s = pg
	case config.DriverSQLite:
		sq, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", cfg.SQLitePath, err)
		}
		s = sq
	default:
		log.Fatalf("Nothing to seed for store driver %q", cfg.StoreDriver)
	}
	defer s.Close()

	fmt.Printf("Seeding %s store\n", cfg.StoreDriver)
	now := time.Now().UTC()

	rel := domain.RelationshipState{Score: 24, Chemistry: 8, LastUpdate: now}
	save(ctx, s, domain.KeyRelationship, rel)
	fmt.Printf("Relationship: score %.0f (%s)\n", rel.Score, domain.StageFor(rel.Score).Stage)

	history := domain.NewHistory(cfg.HistoryLimit)
	history.Push("hi!", "oh hey, you're back")
	history.Push("how's the thesis going?", "don't ask... ok fine, slowly")
	save(ctx, s, domain.KeyHistory, history)

	heart := domain.NewHeart(cfg.PersonaName)
	memories := []struct {
		content    string
		emotion    string
		importance float64
		tags       []string
	}{
		{"User told me they love rainy days and hot chocolate", "happy", 0.6, []string{"preference"}},
		{"We talked about exam stress until late at night", "anxious", 0.75, []string{"school"}},
		{"User sent me a rose for no reason at all", "affection", 0.8, []string{"gift"}},
		{"User said they felt ignored when I was busy", "sad", 0.85, []string{"conflict"}},
	}
	ids := domain.NewIDGenerator(nil)
	for i, m := range memories {
		heart.Episodic = append(heart.Episodic, domain.EpisodicMemory{
			ID:         ids.New(),
			Timestamp:  now.Add(-time.Duration(len(memories)-i) * time.Hour),
			User:       "user",
			Content:    m.content,
			Emotion:    m.emotion,
			Importance: m.importance,
			Tags:       m.tags,
		})
		fmt.Printf("Created memory [%s]: %s\n", m.emotion, domain.Truncate(m.content, 50))
	}
	heart.Hearts.AddHeart(20, "welcome gift", now)
	save(ctx, s, domain.KeyHeart, heart)
	fmt.Printf("Hearts: %d\n", heart.Hearts.Total)

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nTo inspect the companion, use:")
	fmt.Println("go run ./cmd/kindredctl state")
	fmt.Println("go run ./cmd/kindredctl recall 'rainy day'")
}

func save(ctx context.Context, s domain.SnapshotStore, key string, v any) {
	if err := s.Save(ctx, key, v); err != nil {
		log.Fatalf("Failed to save %s: %v", key, err)
	}
}
