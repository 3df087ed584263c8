package toggle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskatlas/taskatlas/atlas/generation/adapters"
)

type stubToggleStore struct {
	mu      sync.Mutex
	toggles map[string]bool
	getErr  error
	reads   int
}

func newStubToggleStore() *stubToggleStore {
	return &stubToggleStore{toggles: make(map[string]bool)}
}

func (s *stubToggleStore) GetToggle(ctx context.Context, name string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.getErr != nil {
		return false, false, s.getErr
	}
	enabled, found := s.toggles[name]
	return enabled, found, nil
}

func (s *stubToggleStore) SetToggle(ctx context.Context, name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles[name] = enabled
	return nil
}

func (s *stubToggleStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

var _ ToggleStore = (*stubToggleStore)(nil)

func newTestToggles(store ToggleStore) *Toggles {
	return NewToggles(store, adapters.NewTTLCache(16), 60, zerolog.Nop())
}

func TestToggles_IsEnabled(t *testing.T) {
	store := newStubToggleStore()
	store.toggles["business_cases"] = true
	toggles := newTestToggles(store)

	enabled, err := toggles.IsEnabled(context.Background(), "business_cases")
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestToggles_UnknownDefaultsOff(t *testing.T) {
	toggles := newTestToggles(newStubToggleStore())

	enabled, err := toggles.IsEnabled(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestToggles_CachesReads(t *testing.T) {
	store := newStubToggleStore()
	store.toggles["search"] = true
	toggles := newTestToggles(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		enabled, err := toggles.IsEnabled(ctx, "search")
		require.NoError(t, err)
		assert.True(t, enabled)
	}
	assert.Equal(t, 1, store.readCount())
}

func TestToggles_SetInvalidatesCache(t *testing.T) {
	store := newStubToggleStore()
	store.toggles["search"] = true
	toggles := newTestToggles(store)
	ctx := context.Background()

	enabled, err := toggles.IsEnabled(ctx, "search")
	require.NoError(t, err)
	require.True(t, enabled)

	require.NoError(t, toggles.Set(ctx, "search", false))

	enabled, err = toggles.IsEnabled(ctx, "search")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestToggles_StoreError(t *testing.T) {
	store := newStubToggleStore()
	store.getErr = errors.New("db unavailable")
	toggles := newTestToggles(store)

	_, err := toggles.IsEnabled(context.Background(), "search")
	assert.Error(t, err)
}

func TestToggles_NilCache(t *testing.T) {
	store := newStubToggleStore()
	store.toggles["search"] = true
	toggles := NewToggles(store, nil, 60, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		enabled, err := toggles.IsEnabled(ctx, "search")
		require.NoError(t, err)
		assert.True(t, enabled)
	}
	assert.Equal(t, 3, store.readCount())
}
