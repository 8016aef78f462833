package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process fixed-window gate: per-identity windows, no
// persistence. The default for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	span    time.Duration
	limit   int
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

var _ Gate = (*Memory)(nil)

// NewMemory creates an in-memory gate allowing limit requests per span.
func NewMemory(span time.Duration, limit int) *Memory {
	return &Memory{
		windows: make(map[string]*window),
		span:    span,
		limit:   limit,
		now:     time.Now,
	}
}

// WithClock overrides the time source (tests).
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Allow counts the request against the identity's current window. A call
// outside the window starts a fresh one; within it, the request is allowed
// until the count exceeds the limit.
func (m *Memory) Allow(_ context.Context, fingerprint string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.windows[fingerprint]
	if w == nil || now.Sub(w.start) >= m.span {
		w = &window{start: now}
		m.windows[fingerprint] = w
	}
	w.count++
	return w.count <= m.limit, nil
}
