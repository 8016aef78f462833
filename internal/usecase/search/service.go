package search

import (
	"context"
	"fmt"
	"time"

	domalg "github.com/kailas-cloud/bbs/internal/domain/algorithm"
	dompost "github.com/kailas-cloud/bbs/internal/domain/post"
	"github.com/kailas-cloud/bbs/internal/domain/ranking"
	"github.com/kailas-cloud/bbs/internal/domain/vector"
	"github.com/kailas-cloud/bbs/internal/index"
	"github.com/kailas-cloud/bbs/internal/metrics"
	postrepo "github.com/kailas-cloud/bbs/internal/repository/post"
)

// Input carries one search request. Weights and AlgorithmName are mutually
// exclusive; when both are empty the board default applies.
type Input struct {
	Vector        []float32
	Hashtags      []string
	Weights       map[string]any
	AlgorithmName string
	Offset        int
	Limit         int
}

// Result is one ranked search hit.
type Result struct {
	Summary    dompost.Summary
	Score      float64
	Similarity float64
}

// Config holds search policy knobs.
type Config struct {
	VectorDim       int
	ScanCap         int
	CandidatePool   int
	DefaultPageSize int
	MaxPageSize     int
}

// Service ranks posts for semantic search and feeds.
type Service struct {
	idx   Searcher
	posts PostReader
	algs  AlgorithmRepository
	clock Clock
	cfg   Config
}

// New creates a search service.
func New(idx Searcher, posts PostReader, algs AlgorithmRepository, clock Clock, cfg Config) *Service {
	if cfg.CandidatePool <= 0 {
		cfg.CandidatePool = 200
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	return &Service{idx: idx, posts: posts, algs: algs, clock: clock, cfg: cfg}
}

// Search scans the index for the query vector, scores the candidate pool
// with the resolved algorithm and returns one ordered page.
func (s *Service) Search(ctx context.Context, in Input) ([]Result, error) {
	if err := vector.CheckDim(in.Vector, s.cfg.VectorDim); err != nil {
		return nil, err
	}
	weights, err := s.resolveWeights(ctx, in.Weights, in.AlgorithmName)
	if err != nil {
		return nil, err
	}
	offset, limit := s.page(in.Offset, in.Limit)

	start := time.Now()
	hits := s.idx.SimilarTo(in.Vector, index.Query{
		K:      s.cfg.CandidatePool,
		Window: s.cfg.ScanCap,
		Filter: index.HasAnyHashtag(in.Hashtags),
	})
	metrics.SimilarityScanDuration.Observe(time.Since(start).Seconds())

	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(hits))
	similarity := make(map[string]float64, len(hits))
	for _, h := range hits {
		ids = append(ids, h.PostID)
		similarity[h.PostID] = h.Score
	}

	listed, err := s.posts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate candidates: %w", err)
	}

	return s.rank(listed, weights, similarity, offset, limit), nil
}

// Feed returns one ordered page of top-level posts scored without a query:
// the similarity factor has no input, so engagement and recency decide.
func (s *Service) Feed(ctx context.Context, hashtag, algorithmName string, rawWeights map[string]any, offset, limit int) ([]Result, error) {
	weights, err := s.resolveWeights(ctx, rawWeights, algorithmName)
	if err != nil {
		return nil, err
	}
	offset, limit = s.page(offset, limit)

	listed, err := s.posts.List(ctx, hashtag, 0, s.cfg.CandidatePool)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	return s.rank(listed, weights, nil, offset, limit), nil
}

// SaveAlgorithm stores a shareable ranking definition for the owner.
func (s *Service) SaveAlgorithm(ctx context.Context, name, owner string, rawWeights map[string]any) (domalg.Algorithm, error) {
	weights, err := domalg.ParseWeights(rawWeights)
	if err != nil {
		return domalg.Algorithm{}, err
	}
	alg := domalg.Algorithm{Name: name, Owner: owner, Weights: weights}
	if err := s.algs.Save(ctx, alg); err != nil {
		return domalg.Algorithm{}, fmt.Errorf("save algorithm: %w", err)
	}
	return alg, nil
}

// Algorithms lists stored definitions.
func (s *Service) Algorithms(ctx context.Context) ([]domalg.Algorithm, error) {
	algs, err := s.algs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list algorithms: %w", err)
	}
	return algs, nil
}

// rank scores every candidate, orders the set and cuts one page.
func (s *Service) rank(listed []postrepo.Listed, weights map[string]float64,
	similarity map[string]float64, offset, limit int,
) []Result {
	if len(listed) == 0 {
		return nil
	}
	now := s.clock.Now()

	maxLikes := 0
	for _, l := range listed {
		if l.Likes > maxLikes {
			maxLikes = l.Likes
		}
	}

	byID := make(map[string]postrepo.Listed, len(listed))
	cands := make([]ranking.Candidate, 0, len(listed))
	for _, l := range listed {
		score := ranking.Score(weights, ranking.Context{
			Similarity: similarity[l.Post.ID()],
			Likes:      l.Likes,
			MaxLikes:   maxLikes,
			Age:        now.Sub(l.Post.CreatedAt()),
		})
		byID[l.Post.ID()] = l
		cands = append(cands, ranking.Candidate{
			ID:        l.Post.ID(),
			CreatedAt: l.Post.CreatedAt(),
			Score:     score,
		})
	}
	ranking.Order(cands)

	if offset >= len(cands) {
		return nil
	}
	end := offset + limit
	if end > len(cands) {
		end = len(cands)
	}

	results := make([]Result, 0, end-offset)
	for _, c := range cands[offset:end] {
		l := byID[c.ID]
		results = append(results, Result{
			Summary:    l.Post.Summarize(l.Likes, l.ReplyCount),
			Score:      c.Score,
			Similarity: similarity[c.ID],
		})
	}
	return results
}

// resolveWeights picks inline weights, a stored definition, or the default.
func (s *Service) resolveWeights(ctx context.Context, raw map[string]any, name string) (map[string]float64, error) {
	if len(raw) > 0 {
		return domalg.ParseWeights(raw)
	}
	if name != "" {
		alg, err := s.algs.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve algorithm %q: %w", name, err)
		}
		return alg.Weights, nil
	}
	return domalg.Default().Weights, nil
}

func (s *Service) page(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	return offset, limit
}
