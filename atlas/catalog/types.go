// Package catalog generates and serves the term catalog shown in the
// admin autocomplete.
package catalog

import "github.com/google/uuid"

// CatalogTerm is one generated glossary entry.
type CatalogTerm struct {
	ID         uuid.UUID `json:"id"`
	Term       string    `json:"term"`
	Lang       string    `json:"lang"`
	Definition string    `json:"definition"`
}
