package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/catalog"
	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/llm"
	"github.com/Harshitk-cp/kindred/internal/store"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(n domain.Notification) {
	m.Called(n)
}

func ofType(t domain.NotificationType) any {
	return mock.MatchedBy(func(n domain.Notification) bool { return n.Type == t })
}

func newMockedCompanion(t *testing.T, pub *mockPublisher) *Companion {
	t.Helper()
	c := NewCompanion(Deps{
		Catalog:   catalog.MustLoad(),
		Store:     store.NewMemoryStore(),
		Oracle:    llm.NewMockClient(),
		Publisher: pub,
		Rand:      &seqRand{floats: []float64{0.99}},
		Logger:    zap.NewNop(),
	}, Config{Persona: "Mia"})
	c.SetClock(newClock(fixedNow).Now)
	t.Cleanup(c.Close)
	return c
}

func TestCompanion_WelcomePublishesOnlyState(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", ofType(domain.NotifyStateUpdate)).Once()
	c := newMockedCompanion(t, pub)

	_, err := c.Welcome(context.Background())
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestCompanion_SpendRejectedStillPublishesNothing(t *testing.T) {
	pub := &mockPublisher{}
	c := newMockedCompanion(t, pub)

	_, err := c.SpendHearts(context.Background(), 3, "sticker")
	require.ErrorIs(t, err, ErrInsufficientHearts)
	pub.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestCompanion_ForcedEventAnnouncedOnSweep(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything).Maybe()
	c := newMockedCompanion(t, pub)
	ctx := context.Background()

	ev, err := c.ForceLifeEvent(ctx, "thesis_crisis")
	require.NoError(t, err)
	require.Equal(t, "thesis_crisis", ev.Name)
	pub.AssertNotCalled(t, "Publish", ofType(domain.NotifyLifeEventQuest))

	c.Sweep(ctx)
	pub.AssertCalled(t, "Publish", ofType(domain.NotifyLifeEventQuest))
	pub.AssertCalled(t, "Publish", ofType(domain.NotifyFeedPost))
}
