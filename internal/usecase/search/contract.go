package search

import (
	"context"
	"time"

	domalg "github.com/kailas-cloud/bbs/internal/domain/algorithm"
	"github.com/kailas-cloud/bbs/internal/index"
	postrepo "github.com/kailas-cloud/bbs/internal/repository/post"
)

// Searcher scans the vector index.
type Searcher interface {
	SimilarTo(query []float32, q index.Query) []index.Hit
}

// PostReader hydrates ranked candidates with listing counters.
type PostReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]postrepo.Listed, error)
	List(ctx context.Context, hashtag string, offset, limit int) ([]postrepo.Listed, error)
}

// AlgorithmRepository resolves and stores shareable algorithm definitions.
type AlgorithmRepository interface {
	Save(ctx context.Context, alg domalg.Algorithm) error
	Get(ctx context.Context, name string) (domalg.Algorithm, error)
	List(ctx context.Context) ([]domalg.Algorithm, error)
}

// Clock issues the reference time for recency decay.
type Clock interface {
	Now() time.Time
}
