package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// TermStore persists catalog terms.
type TermStore interface {
	UpsertTerm(ctx context.Context, term *CatalogTerm) error
	ListTerms(ctx context.Context, lang string) ([]*CatalogTerm, error)
}

// SQLTermStore stores catalog terms in the libsql database.
type SQLTermStore struct {
	db *sql.DB
}

func NewSQLTermStore(db *sql.DB) *SQLTermStore {
	return &SQLTermStore{db: db}
}

var _ TermStore = (*SQLTermStore)(nil)

func (s *SQLTermStore) UpsertTerm(ctx context.Context, term *CatalogTerm) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_terms (id, term, lang, definition, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term, lang) DO UPDATE SET
			definition = excluded.definition,
			updated_at = CURRENT_TIMESTAMP`,
		term.ID.String(), term.Term, term.Lang, term.Definition)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog term %q: %w", term.Term, err)
	}
	return nil
}

func (s *SQLTermStore) ListTerms(ctx context.Context, lang string) ([]*CatalogTerm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, term, lang, definition FROM catalog_terms WHERE lang = ? ORDER BY term`, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog terms: %w", err)
	}
	defer rows.Close()

	var terms []*CatalogTerm
	for rows.Next() {
		var t CatalogTerm
		var id string
		if err := rows.Scan(&id, &t.Term, &t.Lang, &t.Definition); err != nil {
			return nil, fmt.Errorf("failed to scan catalog term: %w", err)
		}
		if t.ID, err = parseTermID(id); err != nil {
			return nil, err
		}
		terms = append(terms, &t)
	}
	return terms, rows.Err()
}

func parseTermID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid catalog term id %q: %w", s, err)
	}
	return id, nil
}

