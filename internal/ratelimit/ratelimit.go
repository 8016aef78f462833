// Package ratelimit gates mutating operations with a fixed per-identity
// window. Read-only operations are never gated.
package ratelimit

import "context"

// Gate decides whether an identity's mutating request may proceed within
// its current window.
type Gate interface {
	Allow(ctx context.Context, fingerprint string) (bool, error)
}
