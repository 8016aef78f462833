// Package algorithm stores shareable ranking definitions as plain data.
package algorithm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/bbs/internal/domain"
	domalg "github.com/kailas-cloud/bbs/internal/domain/algorithm"
	"github.com/kailas-cloud/bbs/internal/repository/sqlite"
)

// Repo implements the algorithm store over SQLite.
type Repo struct {
	store *sqlite.Store
}

// New creates an algorithm repository.
func New(store *sqlite.Store) *Repo {
	return &Repo{store: store}
}

// Save stores or updates an algorithm. Definitions are owned: overwriting a
// name saved by another identity is rejected.
func (r *Repo) Save(ctx context.Context, alg domalg.Algorithm) error {
	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT owner FROM algorithms WHERE name = ?`, alg.Name).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// new definition
	case err != nil:
		return fmt.Errorf("load algorithm %s: %w", alg.Name, err)
	case owner != alg.Owner:
		return domain.ErrAlgorithmOwned
	}

	weights, err := json.Marshal(alg.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO algorithms (name, owner, weights, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET weights = excluded.weights`,
		alg.Name, alg.Owner, string(weights), r.store.Clock().Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save algorithm %s: %w", alg.Name, err)
	}
	return tx.Commit()
}

// Get returns a stored algorithm by name.
func (r *Repo) Get(ctx context.Context, name string) (domalg.Algorithm, error) {
	var (
		alg        domalg.Algorithm
		rawWeights string
	)
	err := r.store.DB().QueryRowContext(ctx,
		`SELECT name, owner, weights FROM algorithms WHERE name = ?`, name,
	).Scan(&alg.Name, &alg.Owner, &rawWeights)
	if errors.Is(err, sql.ErrNoRows) {
		return domalg.Algorithm{}, domain.ErrAlgorithmNotFound
	}
	if err != nil {
		return domalg.Algorithm{}, fmt.Errorf("get algorithm %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(rawWeights), &alg.Weights); err != nil {
		return domalg.Algorithm{}, fmt.Errorf("decode weights of %s: %w", name, err)
	}
	return alg, nil
}

// List returns all stored algorithms ordered by name.
func (r *Repo) List(ctx context.Context) ([]domalg.Algorithm, error) {
	rows, err := r.store.DB().QueryContext(ctx,
		`SELECT name, owner, weights FROM algorithms ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list algorithms: %w", err)
	}
	defer rows.Close()

	var algs []domalg.Algorithm
	for rows.Next() {
		var (
			alg        domalg.Algorithm
			rawWeights string
		)
		if err := rows.Scan(&alg.Name, &alg.Owner, &rawWeights); err != nil {
			return nil, fmt.Errorf("scan algorithm: %w", err)
		}
		if err := json.Unmarshal([]byte(rawWeights), &alg.Weights); err != nil {
			return nil, fmt.Errorf("decode weights of %s: %w", alg.Name, err)
		}
		algs = append(algs, alg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate algorithms: %w", err)
	}
	return algs, nil
}
