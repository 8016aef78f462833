// Package index is the vector index over committed posts: one fixed-length
// embedding per post, nearest-neighbor queries with bounded cost. The
// reference implementation is a linear scan; the contract is written so an
// approximate-nearest-neighbor backend can replace it without touching
// callers.
package index

import "time"

// Entry is one indexed vector with the metadata needed for filtering and
// deterministic tie-breaks.
type Entry struct {
	PostID    string
	Vector    []float32
	CreatedAt time.Time
	Hashtags  []string
}

// Hit is a single similarity result.
type Hit struct {
	PostID    string
	Score     float64
	CreatedAt time.Time
}

// Filter restricts a scan to matching entries. A nil filter passes all.
type Filter func(Entry) bool

// Query parameterizes a similarity scan.
type Query struct {
	// K is the maximum number of hits returned.
	K int

	// Window caps how many of the most-recent entries are examined.
	// Zero means the index's configured scan cap.
	Window int

	// Filter narrows candidates (e.g. to a hashtag subset).
	Filter Filter
}

// Index answers nearest-neighbor queries over post vectors. The stored
// vectors are a derived copy of the content store and rebuildable from it.
type Index interface {
	// Insert records a post's vector. Called once per post, never updated.
	Insert(e Entry)

	// SimilarTo returns up to q.K hits ordered by cosine similarity
	// descending, ties broken by newer post then lower id.
	SimilarTo(query []float32, q Query) []Hit
}

// HasAnyHashtag builds a filter passing entries sharing at least one of the
// given hashtags. An empty tag set passes everything.
func HasAnyHashtag(tags []string) Filter {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return func(e Entry) bool {
		for _, h := range e.Hashtags {
			if _, ok := set[h]; ok {
				return true
			}
		}
		return false
	}
}
