package index

import (
	"sort"
	"sync"

	"github.com/kailas-cloud/bbs/internal/domain/vector"
)

// Memory is the reference Index: a bounded linear scan over an in-memory
// slice kept in insertion order. Server timestamps are monotonic, so
// insertion order is creation order and "most recent" is the tail.
type Memory struct {
	mu      sync.RWMutex
	entries []stored
	scanCap int
}

type stored struct {
	Entry
	magnitude float32
}

var _ Index = (*Memory)(nil)

// NewMemory creates an in-memory index. scanCap bounds how many entries an
// unwindowed scan examines; non-positive disables the cap.
func NewMemory(scanCap int) *Memory {
	return &Memory{scanCap: scanCap}
}

// Insert records a committed post's vector. Entries arrive after commit, so
// readers only ever observe committed posts.
func (m *Memory) Insert(e Entry) {
	s := stored{Entry: e, magnitude: vector.Magnitude(e.Vector)}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, s)
}

// Len returns the number of indexed posts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SimilarTo scans newest-first over at most the window (or the configured
// scan cap), scoring candidates that pass the filter.
func (m *Memory) SimilarTo(query []float32, q Query) []Hit {
	if q.K <= 0 {
		return nil
	}
	window := q.Window
	if window <= 0 {
		window = m.scanCap
	}
	queryMag := vector.Magnitude(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, q.K)
	examined := 0
	for i := len(m.entries) - 1; i >= 0; i-- {
		if window > 0 && examined >= window {
			break
		}
		examined++

		e := m.entries[i]
		if q.Filter != nil && !q.Filter(e.Entry) {
			continue
		}
		hits = append(hits, Hit{
			PostID:    e.PostID,
			Score:     vector.CosineWithMagnitude(query, e.Vector, queryMag, e.magnitude),
			CreatedAt: e.CreatedAt,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.PostID < b.PostID
	})

	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits
}
