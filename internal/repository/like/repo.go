// Package like stores (identity, post) like pairs. The insert is an atomic
// set-membership upsert: concurrent identical likes collapse to one row and
// a repeat like is a no-op success, never an error.
package like

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/bbs/internal/repository/sqlite"
)

// Repo implements the like store over SQLite.
type Repo struct {
	store *sqlite.Store
}

// New creates a like repository.
func New(store *sqlite.Store) *Repo {
	return &Repo{store: store}
}

// Add records a like. Returns whether the like was newly inserted and the
// resulting count. INSERT OR IGNORE closes the check-then-insert race.
func (r *Repo) Add(ctx context.Context, postID, fingerprint string) (bool, int, error) {
	res, err := r.store.DB().ExecContext(ctx, `
		INSERT OR IGNORE INTO likes (post_id, fingerprint, created_at)
		VALUES (?, ?, ?)`,
		postID, fingerprint, r.store.Clock().Now().UnixNano(),
	)
	if err != nil {
		return false, 0, fmt.Errorf("insert like: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("rows affected: %w", err)
	}

	count, err := r.Count(ctx, postID)
	if err != nil {
		return false, 0, err
	}
	return affected == 1, count, nil
}

// Count returns the like count for a post.
func (r *Repo) Count(ctx context.Context, postID string) (int, error) {
	var n int
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count likes of %s: %w", postID, err)
	}
	return n, nil
}

// Counts returns like counts for a batch of posts; ids absent from the
// result have zero likes.
func (r *Repo) Counts(ctx context.Context, postIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}

	query := `SELECT post_id, COUNT(*) FROM likes WHERE post_id IN (?` +
		strings.Repeat(",?", len(postIDs)-1) + `) GROUP BY post_id`
	args := make([]any, len(postIDs))
	for i, id := range postIDs {
		args[i] = id
	}

	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan like count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate like counts: %w", err)
	}
	return counts, nil
}
