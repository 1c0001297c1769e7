package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/catalog"
	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/embedding"
	"github.com/Harshitk-cp/kindred/internal/llm"
	"github.com/Harshitk-cp/kindred/internal/notify"
	"github.com/Harshitk-cp/kindred/internal/service"
	"github.com/Harshitk-cp/kindred/internal/store"
)

type mockPinger struct {
	mock.Mock
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type testServer struct {
	app    *App
	oracle *llm.MockClient
	store  *store.MemoryStore
}

func newTestServer(t *testing.T, pinger Pinger) *testServer {
	t.Helper()
	ms := store.NewMemoryStore()
	oracle := llm.NewMockClient()
	hub := notify.NewHub(zap.NewNop())
	assoc := service.NewAssociativeMemory(embedding.NewMockClient(), store.NewMemoryVectorStore(), zap.NewNop())

	c := service.NewCompanion(service.Deps{
		Catalog:     catalog.MustLoad(),
		Store:       ms,
		Oracle:      oracle,
		Publisher:   hub,
		Associative: assoc,
		Rand:        rand.New(rand.NewPCG(1, 2)),
		Logger:      zap.NewNop(),
	}, service.Config{Persona: "Mia"})
	t.Cleanup(c.Close)

	app := NewApp(Deps{
		Companion: c,
		Hub:       hub,
		Store:     pinger,
		Logger:    zap.NewNop(),
	})
	return &testServer{app: app, oracle: oracle, store: ms}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	p := &mockPinger{}
	p.On("Ping", mock.Anything).Return(nil).Once()
	p.On("Ping", mock.Anything).Return(errors.New("database is locked")).Once()
	s := newTestServer(t, p)

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database is locked", decode[map[string]string](t, rec)["error"])

	p.AssertExpectations(t)
}

func TestMetricsAndVersion(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodGet, "/v1/state", "")
	s.do(t, http.MethodPost, "/v1/chat", "not json")

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[map[string]any](t, rec)
	assert.EqualValues(t, 3, m["request_count"])
	assert.EqualValues(t, 1, m["error_count"])
	assert.Contains(t, m, "notifications")

	rec = s.do(t, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", decode[map[string]string](t, rec)["version"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestChat(t *testing.T) {
	s := newTestServer(t, nil)
	s.oracle.Responses = []string{`{"reply":"hi there","ai_emotion":"happy","ai_tone":"warm","stage_action":"smile","neuro_deltas":{"dopamine":1}}`}

	rec := s.do(t, http.MethodPost, "/v1/chat", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.TurnResult](t, rec)
	assert.Equal(t, "hi there", res.Reply.Reply)
	assert.Equal(t, 1, res.HeartsTotal)

	rec = s.do(t, http.MethodPost, "/v1/chat", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/chat", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[map[string]string](t, rec)["error"])
}

func TestGiftFlow(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/gifts/unicorn", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/gifts/rose", "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/hearts/collect", `{"points":6,"reason":"daily"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decode[map[string]int](t, rec)["total"])

	rec = s.do(t, http.MethodPost, "/v1/gifts/rose", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/gifts/rose", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/gifts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	gifts := decode[struct {
		Gifts []service.GiftStatus `json:"gifts"`
	}](t, rec).Gifts
	require.NotEmpty(t, gifts)
	for _, g := range gifts {
		assert.Equal(t, g.ID == "rose", g.Locked, g.ID)
	}

	rec = s.do(t, http.MethodPost, "/v1/gifts/%20", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/gift", `{"gift_id":"rose"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "gift id lives in the path")
}

func TestHearts(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/hearts/collect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["total"])

	rec = s.do(t, http.MethodPost, "/v1/hearts/collect", `{"points":-2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/hearts/spend", `{"points":5}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/hearts/spend", `{"points":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/hearts/spend", `{"points":1,"reason":"sticker"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[map[string]int](t, rec)["total"])

	rec = s.do(t, http.MethodGet, "/v1/hearts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decode[domain.HeartLedger](t, rec)
	assert.Equal(t, 0, ledger.Total)
	assert.Len(t, ledger.History, 2)
}

func TestLikeAndComment(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/like", `{"post":"beach day!"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/v1/comment", `{"post":"beach day!","comment":"looks fun"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[service.TurnResult](t, rec).HeartsTotal)

	rec = s.do(t, http.MethodPost, "/v1/like", `{"post":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/v1/comment", `{"post":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemoryEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	s.oracle.Respond = func(prompt string, opts domain.GenerateOptions) (string, error) {
		if !opts.JSON {
			return "That day at the lake was perfect.", nil
		}
		return s.oracle.DefaultResponse, nil
	}

	rec := s.do(t, http.MethodPost, "/v1/memory/diary", `{"text":"We went to the lake together"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	diary := decode[service.DiaryResult](t, rec)
	assert.Contains(t, diary.Stored, "We went to the lake together")
	assert.Contains(t, diary.Stored, "Mia: That day at the lake was perfect.")

	rec = s.do(t, http.MethodPost, "/v1/memory/diary", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/memory/recall?q=lake&k=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	recall := decode[service.RecallResult](t, rec)
	assert.NotEmpty(t, recall.Heart)
	require.NotEmpty(t, recall.Associative)
	assert.Contains(t, recall.Associative[0].Text, "lake")

	rec = s.do(t, http.MethodGet, "/v1/memory/recall", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/memory/recall?q=lake&k=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/memory/churn", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.GreaterOrEqual(t, decode[domain.ChurnResult](t, rec).DreamsCreated, 1)
}

func TestStateAndRelationship(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[service.State](t, rec)
	assert.Equal(t, "Mia", st.Persona)
	assert.Equal(t, domain.StageGettingToKnow, st.Stage.Stage)

	rec = s.do(t, http.MethodGet, "/v1/relationship", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rel := decode[map[string]any](t, rec)
	assert.Contains(t, rel, "progress")
	assert.Contains(t, rel, "tone")

	rec = s.do(t, http.MethodGet, "/v1/relationship/tokens", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tok := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, tok["tokens"])
	assert.Equal(t, string(domain.StageGettingToKnow), tok["stage"])
}

func TestEvents(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/events/no_such_event/force", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/events/thesis_crisis/force", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[domain.ActiveLifeEvent](t, rec)
	assert.Equal(t, "thesis_crisis", ev.Name)

	rec = s.do(t, http.MethodGet, "/v1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "thesis_crisis"), body)
	assert.Contains(t, body, `"position"`)

	rec = s.do(t, http.MethodPost, "/v1/events/force", "")
	assert.Equal(t, http.StatusCreated, rec.Code, "bare route picks a random event")
}

func TestRoutine(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/v1/routine", "")
	require.Equal(t, http.StatusOK, rec.Code)
	r := decode[struct {
		Mode     domain.RoutineMode   `json:"mode"`
		Schedule []domain.RoutineSlot `json:"schedule"`
	}](t, rec)
	assert.Equal(t, domain.RoutineSynced, r.Mode)
	assert.NotEmpty(t, r.Schedule)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/v1/agents", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
