// Package toggle reads feature toggles with a time-bounded cache in
// front of the database.
package toggle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// ToggleStore reads toggle state from storage.
type ToggleStore interface {
	// GetToggle reports the stored state; found is false for unknown names.
	GetToggle(ctx context.Context, name string) (enabled bool, found bool, err error)
	SetToggle(ctx context.Context, name string, enabled bool) error
}

// SQLToggleStore reads feature_toggles from the libsql database.
type SQLToggleStore struct {
	db *sql.DB
}

func NewSQLToggleStore(db *sql.DB) *SQLToggleStore {
	return &SQLToggleStore{db: db}
}

var _ ToggleStore = (*SQLToggleStore)(nil)

func (s *SQLToggleStore) GetToggle(ctx context.Context, name string) (bool, bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled FROM feature_toggles WHERE name = ?`, name).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read toggle %q: %w", name, err)
	}
	return enabled != 0, true, nil
}

func (s *SQLToggleStore) SetToggle(ctx context.Context, name string, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feature_toggles (name, enabled, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP`, name, v)
	if err != nil {
		return fmt.Errorf("failed to set toggle %q: %w", name, err)
	}
	return nil
}

// Toggles answers toggle lookups, memoized in the TTL cache port.
// Unknown toggles read as disabled.
type Toggles struct {
	store   ToggleStore
	cache   ports.Cache
	ttlSecs int
	logger  zerolog.Logger
}

func NewToggles(store ToggleStore, cache ports.Cache, ttlSecs int, logger zerolog.Logger) *Toggles {
	return &Toggles{
		store:   store,
		cache:   cache,
		ttlSecs: ttlSecs,
		logger:  logger.With().Str("component", "toggles").Logger(),
	}
}

// IsEnabled reports whether the named toggle is on. Storage errors are
// returned; the toggle state never falls back to a stale guess.
func (t *Toggles) IsEnabled(ctx context.Context, name string) (bool, error) {
	key := "toggle:" + name
	if t.cache != nil {
		if data, ok := t.cache.Get(ctx, key); ok && len(data) == 1 {
			return data[0] == 1, nil
		}
	}

	enabled, found, err := t.store.GetToggle(ctx, name)
	if err != nil {
		return false, err
	}
	if !found {
		t.logger.Debug().Str("name", name).Msg("unknown toggle, defaulting off")
	}

	if t.cache != nil {
		v := byte(0)
		if enabled {
			v = 1
		}
		_ = t.cache.Set(ctx, key, []byte{v}, t.ttlSecs)
	}
	return enabled, nil
}

// Set writes the toggle and drops the cached value so the next read
// sees the new state immediately.
func (t *Toggles) Set(ctx context.Context, name string, enabled bool) error {
	if err := t.store.SetToggle(ctx, name, enabled); err != nil {
		return err
	}
	if t.cache != nil {
		_ = t.cache.Delete(ctx, "toggle:"+name)
	}
	t.logger.Info().Str("name", name).Bool("enabled", enabled).Msg("toggle updated")
	return nil
}
