// Package businesscase deduplicates concurrent LLM generation requests with
// a single-flight, per-key memoization cache.
package businesscase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskatlas/taskatlas/atlas/config"
)

const (
	defaultWaitTimeout  = 30 * time.Second
	defaultKeyPrefixLen = 100
)

// Cache memoizes business-case generation results keyed by a normalized
// task description. At most one generation runs per key at any time;
// callers arriving while one is in flight subscribe to its outcome instead
// of triggering a duplicate call. Entries never expire; they are removed
// only by Clear.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*BusinessCase
	inflight map[string]*flight

	waitTimeout  time.Duration
	keyPrefixLen int
	logger       zerolog.Logger
}

// flight marks one in-flight generation. Its done channel is closed when
// the generation settles, success or failure; waiters decide the outcome by
// re-checking the completed cache.
type flight struct {
	done chan struct{}
}

// NewCache creates a cache. A nil config selects the defaults (30s waiter
// deadline, 100-rune key prefix).
func NewCache(cfg *config.BusinessCaseConfig, logger zerolog.Logger) *Cache {
	c := &Cache{
		entries:      make(map[string]*BusinessCase),
		inflight:     make(map[string]*flight),
		waitTimeout:  defaultWaitTimeout,
		keyPrefixLen: defaultKeyPrefixLen,
		logger:       logger,
	}
	if cfg != nil {
		if cfg.WaitTimeout > 0 {
			c.waitTimeout = cfg.WaitTimeout
		}
		if cfg.KeyPrefix > 0 {
			c.keyPrefixLen = cfg.KeyPrefix
		}
	}
	return c
}

// GetOrGenerate returns the cached business case for the task, or computes
// it exactly once via gen even when logically-concurrent callers request
// the same key. auxInputs and lang pass through to the generator unchanged;
// only taskText contributes to the key.
//
// The initiating caller receives the generator's error verbatim. Coalesced
// waiters receive ErrGenerationFailed or ErrGenerationTimeout only; a
// timed-out waiter does not cancel the generation, and a generation that
// succeeds after waiters gave up still populates the cache for later calls.
func (c *Cache) GetOrGenerate(ctx context.Context, taskText string, auxInputs []string, lang Language, gen GeneratorFunc) (*BusinessCase, error) {
	key := c.normalizeKey(taskText)

	c.mu.Lock()
	if cached, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.logger.Debug().Str("key", key).Msg("business case cache hit")
		return cached, nil
	}
	if fl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return c.await(ctx, key, fl)
	}

	fl := &flight{done: make(chan struct{})}
	c.inflight[key] = fl
	c.mu.Unlock()

	c.logger.Debug().Str("key", key).Str("lang", string(lang)).Msg("starting business case generation")

	result, err := gen(ctx, taskText, auxInputs, lang)

	c.mu.Lock()
	if err == nil {
		// Written unconditionally, even if Clear ran meanwhile: a
		// generation crossing a clear repopulates its entry.
		c.entries[key] = result
	}
	if cur, ok := c.inflight[key]; ok && cur == fl {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	close(fl.done)

	if err != nil {
		c.logger.Warn().Str("key", key).Err(err).Msg("business case generation failed")
		return nil, err
	}
	c.logger.Debug().Str("key", key).Msg("business case generation completed")
	return result, nil
}

// await blocks a coalesced waiter until the flight settles, the wait
// deadline elapses, or the caller's context is cancelled.
func (c *Cache) await(ctx context.Context, key string, fl *flight) (*BusinessCase, error) {
	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	select {
	case <-fl.done:
		c.mu.Lock()
		cached, ok := c.entries[key]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}
		// Settled without an entry: the generation failed. The original
		// error stays with the initiating caller.
		return nil, ErrGenerationFailed
	case <-timer.C:
		c.logger.Warn().Str("key", key).Dur("timeout", c.waitTimeout).Msg("coalesced waiter timed out")
		return nil, ErrGenerationTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Clear empties the completed cache and the in-flight marker set. It does
// not stop generations already executing; one that completes afterwards
// still writes its entry. Callers needing a hard reset must ensure no
// generation is in flight.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*BusinessCase)
	c.inflight = make(map[string]*flight)
	c.mu.Unlock()
	c.logger.Debug().Msg("business case cache cleared")
}

// Stats reports the current cache population.
type Stats struct {
	CachedEntries int
	InFlight      int
}

// GetStats returns current entry and in-flight counts.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		CachedEntries: len(c.entries),
		InFlight:      len(c.inflight),
	}
}

// normalizeKey derives the cache key: trimmed, lower-cased, truncated to
// the configured rune prefix. Inputs differing only in case, surrounding
// whitespace, or beyond the prefix coalesce onto one entry; this lossy
// policy is intentional.
func (c *Cache) normalizeKey(taskText string) string {
	key := strings.ToLower(strings.TrimSpace(taskText))
	if runes := []rune(key); len(runes) > c.keyPrefixLen {
		key = string(runes[:c.keyPrefixLen])
	}
	return key
}
