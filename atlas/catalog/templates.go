package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Built-in prompts used when no template file overrides them.
var defaultTemplates = map[string]string{
	"definition_en": `You write glossary entries for workplace automation terms.
Respond with strict JSON only: {"definition": "..."} where the definition is two to three plain sentences.`,
	"definition_de": `Du schreibst Glossareintraege fuer Begriffe rund um Arbeitsplatz-Automatisierung.
Antworte ausschliesslich mit striktem JSON: {"definition": "..."} mit zwei bis drei einfachen Saetzen.`,
}

// TemplateStore serves prompt templates from a directory and reloads
// them when the files change on disk.
type TemplateStore struct {
	dir    string
	logger zerolog.Logger

	mu        sync.RWMutex
	templates map[string]string
}

func NewTemplateStore(dir string, logger zerolog.Logger) *TemplateStore {
	return &TemplateStore{
		dir:       dir,
		logger:    logger.With().Str("component", "catalog_templates").Logger(),
		templates: make(map[string]string),
	}
}

// Load reads every .tmpl file in the directory. A missing directory is
// not an error; the built-in prompts remain in effect.
func (s *TemplateStore) Load() error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read template dir: %w", err)
	}

	loaded := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		loaded[name] = strings.TrimSpace(string(data))
	}

	s.mu.Lock()
	s.templates = loaded
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(loaded)).Msg("templates loaded")
	return nil
}

// Get returns the template body, falling back to the built-in prompt.
func (s *TemplateStore) Get(name string) (string, bool) {
	s.mu.RLock()
	body, ok := s.templates[name]
	s.mu.RUnlock()
	if ok {
		return body, true
	}
	body, ok = defaultTemplates[name]
	return body, ok
}

// Watch reloads templates whenever files in the directory change. It
// blocks until the context is cancelled.
func (s *TemplateStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch template dir %s: %w", s.dir, err)
	}
	s.logger.Info().Str("dir", s.dir).Msg("template watcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".tmpl") {
				continue
			}
			if err := s.Load(); err != nil {
				s.logger.Error().Err(err).Msg("template reload failed")
				continue
			}
			s.logger.Info().Str("file", filepath.Base(event.Name)).Msg("templates reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error().Err(err).Msg("template watcher error")
		}
	}
}
