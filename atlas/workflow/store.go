package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// WorkflowStore persists workflows and answers full-text queries.
type WorkflowStore interface {
	UpsertWorkflow(ctx context.Context, w *Workflow) error
	SearchWorkflows(ctx context.Context, ftsQuery, lang string, k int) ([]SearchResult, error)
}

// SQLWorkflowStore stores workflows in the libsql database. The FTS5
// shadow table is maintained by triggers, so only the base table is
// written here.
type SQLWorkflowStore struct {
	db *sql.DB
}

func NewSQLWorkflowStore(db *sql.DB) *SQLWorkflowStore {
	return &SQLWorkflowStore{db: db}
}

var _ WorkflowStore = (*SQLWorkflowStore)(nil)

func (s *SQLWorkflowStore) UpsertWorkflow(ctx context.Context, w *Workflow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, title, description, tags, lang, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			lang = excluded.lang,
			updated_at = CURRENT_TIMESTAMP`,
		w.ID.String(), w.Title, w.Description, joinTags(w.Tags), w.Lang)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow %s: %w", w.ID, err)
	}
	return nil
}

// SearchWorkflows runs a BM25 query over the FTS5 index. bm25 is a
// cost, so ascending order ranks best matches first.
func (s *SQLWorkflowStore) SearchWorkflows(ctx context.Context, ftsQuery, lang string, k int) ([]SearchResult, error) {
	if ftsQuery == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	sqlQuery := `
		SELECT
			w.id,
			w.title,
			w.description,
			w.tags,
			w.lang,
			bm25(workflows_fts) AS bm25_score
		FROM workflows_fts
		JOIN workflows w ON workflows_fts.rowid = w.rowid
		WHERE workflows_fts MATCH ?`
	args := []interface{}{ftsQuery}
	if lang != "" {
		sqlQuery += " AND w.lang = ?"
		args = append(args, lang)
	}
	sqlQuery += " ORDER BY bm25_score ASC LIMIT ?"
	args = append(args, k)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("FTS5 search query failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var id, tags string
		if err := rows.Scan(&id, &r.Workflow.Title, &r.Workflow.Description, &tags, &r.Workflow.Lang, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan FTS5 result: %w", err)
		}
		if r.Workflow.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid workflow id %q: %w", id, err)
		}
		r.Workflow.Tags = splitTags(tags)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating FTS5 results: %w", err)
	}
	return results, nil
}

// escapeFTS5Query neutralizes FTS5 query syntax by wrapping the whole
// input in a quoted phrase, with embedded quotes doubled. Operators
// like " ( ) : * - AND OR NOT NEAR match literally, never parse.
func escapeFTS5Query(query string) string {
	query = strings.TrimSpace(query)
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(query, "\"", "\"\""))
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
