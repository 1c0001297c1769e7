package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/store"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kindred.db")
	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, domain.KeyRelationship, domain.RelationshipState{Score: 30, Chemistry: 12, Tokens: 5}))
	require.NoError(t, s.Save(ctx, domain.KeyHistory, &domain.History{
		Limit: 100,
		Exchanges: []domain.Exchange{
			{User: "hi", AI: "hello"},
			{User: "how are you", AI: "tired, thesis stuff"},
			{User: "good luck", AI: "thanks!"},
		},
	}))

	heart := domain.NewHeart("Mia")
	heart.Episodic = append(heart.Episodic, domain.EpisodicMemory{
		ID: domain.NewIDGenerator(nil).New(), User: "user", Content: "we went to the beach at sunset", Emotion: "happy", Importance: 0.8,
	})
	heart.Hearts.AddHeart(7, "chatted", time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, domain.KeyHeart, heart))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStage(t *testing.T) {
	out, err := run(t, "stage", "30")
	require.NoError(t, err)
	assert.Contains(t, out, string(domain.StageWarming))

	out, err = run(t, "stage", "30", "--format", "json")
	require.NoError(t, err)
	var v struct {
		Progress domain.StageProgress `json:"progress"`
		Tokens   int                  `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, domain.StageWarming, v.Progress.Stage)
	assert.Equal(t, 5, v.Tokens)

	out, err = run(t, "stage", "150")
	require.NoError(t, err)
	assert.Contains(t, out, "("+string(domain.StageGettingToKnow)+")")

	_, err = run(t, "stage", "lots")
	assert.ErrorContains(t, err, "invalid score")
}

func TestState(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "--db", db, "state", "-f", "json")
	require.NoError(t, err)
	var v stateView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.InDelta(t, 30, v.Relationship.Score, 1e-9)
	assert.Equal(t, domain.StageWarming, v.Stage.Stage)
	assert.Contains(t, v.Affect, "dopamine")

	out, err = run(t, "--db", db, "state")
	require.NoError(t, err)
	assert.Contains(t, out, "score:     30.0")
	assert.Contains(t, out, "tokens:    5")
}

func TestHistory(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "--db", db, "--persona", "Mia", "history", "-n", "2")
	require.NoError(t, err)
	assert.NotContains(t, out, "User: hi\n")
	assert.Contains(t, out, "User: how are you\nMia: tired, thesis stuff\n")
	assert.Contains(t, out, "Mia: thanks!")
}

func TestHeartsAndRecall(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "--db", db, "hearts")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 7")
	assert.Contains(t, out, "+7  chatted")

	out, err = run(t, "--db", db, "recall", "beach", "-k", "1", "--format", "json")
	require.NoError(t, err)
	var results []domain.RecallResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Text, "beach")
}

func TestChurnPersists(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "--db", db, "churn", "--dreams", "1", "-f", "json")
	require.NoError(t, err)
	var res domain.ChurnResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.DreamsCreated)

	s, err := store.NewSQLiteStore(db)
	require.NoError(t, err)
	defer s.Close()
	var heart domain.Heart
	require.NoError(t, s.Load(context.Background(), domain.KeyHeart, &heart))
	assert.Len(t, heart.Dreams, 1)
}

func TestEvents(t *testing.T) {
	db := seedDB(t)

	out, err := run(t, "--db", db, "events")
	require.NoError(t, err)
	assert.Contains(t, out, "position:")
	assert.Contains(t, out, "no active events")
}

func TestMissingDatabase(t *testing.T) {
	_, err := run(t, "--db", filepath.Join(t.TempDir(), "nope.db"), "state")
	assert.Error(t, err)
}

func TestBadFormat(t *testing.T) {
	_, err := run(t, "version", "--format", "yaml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kindred dev")
}

func TestDBPathResolution(t *testing.T) {
	o := &options{}
	t.Setenv("KINDRED_DB", "")
	t.Setenv("SQLITE_PATH", "")
	assert.Equal(t, defaultDBPath, o.path())

	t.Setenv("SQLITE_PATH", "/tmp/a.db")
	assert.Equal(t, "/tmp/a.db", o.path())

	t.Setenv("KINDRED_DB", "/tmp/b.db")
	assert.Equal(t, "/tmp/b.db", o.path())

	o.dbPath = "/tmp/c.db"
	assert.Equal(t, "/tmp/c.db", o.path())
}
