// Package identity stores registered identities. Onboarding happens
// elsewhere; the core records the admitted result and resolves @mentions
// against it.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/bbs/internal/domain"
	"github.com/kailas-cloud/bbs/internal/repository/sqlite"
)

// Repo implements the identity store over SQLite.
type Repo struct {
	store *sqlite.Store
}

// New creates an identity repository.
func New(store *sqlite.Store) *Repo {
	return &Repo{store: store}
}

// Create registers an identity once. Fingerprint and display name are both
// unique; a conflict on either yields ErrIdentityExists.
func (r *Repo) Create(ctx context.Context, id domain.Identity) error {
	_, err := r.store.DB().ExecContext(ctx, `
		INSERT INTO identities (fingerprint, display_name, admitted, created_at)
		VALUES (?, ?, ?, ?)`,
		id.Fingerprint, id.DisplayName, boolToInt(id.Admitted), id.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdentityExists
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// SetAdmitted updates the admission status, the only mutable identity field.
func (r *Repo) SetAdmitted(ctx context.Context, fingerprint string, admitted bool) error {
	res, err := r.store.DB().ExecContext(ctx,
		`UPDATE identities SET admitted = ? WHERE fingerprint = ?`,
		boolToInt(admitted), fingerprint)
	if err != nil {
		return fmt.Errorf("update admission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// ByFingerprint looks up an identity by public-key fingerprint.
func (r *Repo) ByFingerprint(ctx context.Context, fingerprint string) (domain.Identity, error) {
	return r.one(ctx, `WHERE fingerprint = ?`, fingerprint)
}

// ByDisplayName looks up an identity by display name.
func (r *Repo) ByDisplayName(ctx context.Context, name string) (domain.Identity, error) {
	return r.one(ctx, `WHERE display_name = ?`, name)
}

func (r *Repo) one(ctx context.Context, where string, arg any) (domain.Identity, error) {
	var (
		id           domain.Identity
		admitted     int
		createdNanos int64
	)
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT fingerprint, display_name, admitted, created_at FROM identities `+where, arg,
	).Scan(&id.Fingerprint, &id.DisplayName, &admitted, &createdNanos)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Identity{}, domain.ErrIdentityNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("query identity: %w", err)
	}
	id.Admitted = admitted != 0
	id.CreatedAt = time.Unix(0, createdNanos).UTC()
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation detects SQLite unique constraint failures. The modernc
// driver surfaces them as plain errors carrying the SQLite message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
