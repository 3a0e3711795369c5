package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopassist/pkg"
)

func newTestStore() (*Store, *MemoryBackend, *time.Time) {
	backend := NewMemoryBackend()
	store := NewStore(backend)
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	return store, backend, &clock
}

func TestLoadCreatesDefaultMemory(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	memory, err := store.Load(ctx, "s1")
	require.NoError(t, err)

	assert.Nil(t, memory.Budget)
	assert.Empty(t, memory.Category)
	assert.Empty(t, memory.ProductType)
	assert.Empty(t, memory.Preferences)
	assert.Empty(t, memory.LastProducts)
	assert.Empty(t, memory.History)
}

func TestIdleSessionResets(t *testing.T) {
	store, _, clock := newTestStore()
	ctx := context.Background()

	budget := 500
	_, err := store.Update(ctx, "s1", pkg.MemoryUpdate{
		Budget:      &budget,
		Preferences: []string{"organic"},
	})
	require.NoError(t, err)

	// 29 minutes idle keeps state.
	*clock = clock.Add(29 * time.Minute)
	memory, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, memory.Budget)
	assert.Equal(t, 500, *memory.Budget)

	// Past the timeout the session starts over.
	*clock = clock.Add(31 * time.Minute)
	memory, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, memory.Budget)
	assert.Empty(t, memory.Preferences)
}

func TestAccessRefreshesExpiryWindow(t *testing.T) {
	store, _, clock := newTestStore()
	ctx := context.Background()

	budget := 300
	_, err := store.Update(ctx, "s1", pkg.MemoryUpdate{Budget: &budget})
	require.NoError(t, err)

	// Touch the session every 20 minutes; it must never expire.
	for i := 0; i < 4; i++ {
		*clock = clock.Add(20 * time.Minute)
		memory, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, memory.Budget, "access %d should have kept the session alive", i)
	}
}

func TestUpdateMergeSemantics(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	category := "health-mix"
	_, err := store.Update(ctx, "s1", pkg.MemoryUpdate{
		Category:    &category,
		Preferences: []string{"organic", "no sugar"},
		LastProducts: []pkg.ProductCandidate{
			{ProductID: "p1", Title: "Millet Mix"},
			{ProductID: "p2", Title: "Ragi Porridge"},
		},
	})
	require.NoError(t, err)

	// A later update replaces lastProducts wholesale but only unions
	// preferences; untouched fields survive.
	memory, err := store.Update(ctx, "s1", pkg.MemoryUpdate{
		Preferences:  []string{"organic", "millet"},
		LastProducts: []pkg.ProductCandidate{{ProductID: "p3", Title: "Idli Batter"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "health-mix", memory.Category)
	assert.Equal(t, []string{"organic", "no sugar", "millet"}, memory.Preferences)
	require.Len(t, memory.LastProducts, 1)
	assert.Equal(t, "p3", memory.LastProducts[0].ProductID)
}

func TestHistoryCap(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	for i := 0; i < HistoryLimit+5; i++ {
		require.NoError(t, store.AppendMessage(ctx, "s1", "user", fmt.Sprintf("message %d", i)))
	}

	memory, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, memory.History, HistoryLimit)
	assert.Equal(t, "message 5", memory.History[0].Content)
	assert.Equal(t, fmt.Sprintf("message %d", HistoryLimit+4), memory.History[HistoryLimit-1].Content)
}

func TestPersistenceFailureIsReported(t *testing.T) {
	store, backend, _ := newTestStore()
	ctx := context.Background()

	backend.FailWrites = errors.New("redis gone")

	budget := 100
	_, err := store.Update(ctx, "s1", pkg.MemoryUpdate{Budget: &budget})
	assert.ErrorContains(t, err, "redis gone")

	err = store.AppendMessage(ctx, "s1", "user", "hello")
	assert.ErrorContains(t, err, "redis gone")
}

func TestSessionsAreIsolated(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	budget := 250
	_, err := store.Update(ctx, "a", pkg.MemoryUpdate{Budget: &budget})
	require.NoError(t, err)

	memory, err := store.Load(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, memory.Budget)
}

func TestLoadSurvivesProcessRestart(t *testing.T) {
	backend := NewMemoryBackend()
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	first := NewStore(backend)
	first.now = func() time.Time { return clock }

	query := "millet health mix"
	_, err := first.Update(context.Background(), "s1", pkg.MemoryUpdate{LastQuery: &query})
	require.NoError(t, err)

	// A fresh store over the same backend sees the persisted record.
	second := NewStore(backend)
	second.now = func() time.Time { return clock.Add(5 * time.Minute) }

	memory, err := second.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "millet health mix", memory.LastQuery)
}

func TestCorruptRecordResets(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(context.Background(), "s1", []byte("{not json")))

	store := NewStore(backend)
	memory, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, memory.Budget)
	assert.Empty(t, memory.History)
}
