package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/bbs/internal/domain"
	domnotif "github.com/kailas-cloud/bbs/internal/domain/notification"
	dompost "github.com/kailas-cloud/bbs/internal/domain/post"
	"github.com/kailas-cloud/bbs/internal/domain/vector"
	"github.com/kailas-cloud/bbs/internal/index"
	"github.com/kailas-cloud/bbs/internal/metrics"
)

// Decision is the outcome of the duplicate guard for a create request.
type Decision string

const (
	DecisionAccepted       Decision = "accepted"
	DecisionWarned         Decision = "warned"
	DecisionForcedAccepted Decision = "forced_accepted"
)

// CreateInput carries a post submission. The vector is computed by the
// caller; the server never embeds content itself.
type CreateInput struct {
	AuthorFingerprint string
	AuthorName        string
	Content           string
	Vector            []float32
	Hashtags          []string
	ParentID          string
	Force             bool
}

// CreateResult reports the guard decision. Post is populated only when the
// submission was committed; a Warned result carries the nearest recent post
// and its similarity instead.
type CreateResult struct {
	Decision      Decision
	Post          dompost.Post
	SimilarPostID string
	Similarity    float64
}

// Thread is a post with its reply chain and like count.
type Thread struct {
	Post     dompost.Post
	Children []dompost.Post
	Likes    int
}

// LikeResult reports the stored like count. Liked is false when the identity
// had already liked the post; that is still success.
type LikeResult struct {
	Liked bool
	Count int
}

// Config holds posting policy knobs.
type Config struct {
	VectorDim           int
	MaxContentLen       int
	SimilarityThreshold float64
	RecentWindow        int
	DefaultPageSize     int
	MaxPageSize         int
}

// Service handles the write path: rate gate, duplicate guard, atomic commit,
// index insert and notification derivation.
type Service struct {
	repo   Repository
	likes  LikeRepository
	notifs NotificationWriter
	idents IdentityReader
	idx    Inserter
	gate   Gate
	clock  Clock
	cfg    Config
}

// New creates a post service.
func New(
	repo Repository,
	likes LikeRepository,
	notifs NotificationWriter,
	idents IdentityReader,
	idx Inserter,
	gate Gate,
	clock Clock,
	cfg Config,
) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	return &Service{
		repo:   repo,
		likes:  likes,
		notifs: notifs,
		idents: idents,
		idx:    idx,
		gate:   gate,
		clock:  clock,
		cfg:    cfg,
	}
}

// Create runs the write path for a new post. The duplicate guard is a
// read-only pre-commit check: a Warned result leaves no trace in storage.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if err := s.allow(ctx, in.AuthorFingerprint); err != nil {
		return CreateResult{}, err
	}
	if err := vector.CheckDim(in.Vector, s.cfg.VectorDim); err != nil {
		return CreateResult{}, err
	}

	p, err := dompost.New(
		in.AuthorFingerprint, in.AuthorName, in.Content,
		in.Vector, in.Hashtags, in.ParentID, s.cfg.MaxContentLen,
	)
	if err != nil {
		return CreateResult{}, err
	}

	decision := DecisionAccepted
	if in.Force {
		decision = DecisionForcedAccepted
	} else if hit, found := s.nearestRecent(in.Vector); found && hit.Score >= s.cfg.SimilarityThreshold {
		metrics.DuplicateWarnedTotal.Inc()
		return CreateResult{
			Decision:      DecisionWarned,
			SimilarPostID: hit.PostID,
			Similarity:    hit.Score,
		}, nil
	}

	if err := s.repo.Create(ctx, &p); err != nil {
		return CreateResult{}, fmt.Errorf("create post: %w", err)
	}

	s.idx.Insert(index.Entry{
		PostID:    p.ID(),
		Vector:    p.Vector(),
		CreatedAt: p.CreatedAt(),
		Hashtags:  p.Hashtags(),
	})

	kind := "thread"
	if p.IsReply() {
		kind = "reply"
		s.notifyReply(ctx, &p)
	}
	metrics.PostsCreatedTotal.WithLabelValues(kind).Inc()

	s.notifyMentions(ctx, p.ID(), in.AuthorFingerprint, in.AuthorName, in.Content)

	return CreateResult{Decision: decision, Post: p}, nil
}

// Append adds an entry to the author's own post.
func (s *Service) Append(ctx context.Context, postID, fingerprint, name, content string) (dompost.Append, error) {
	if err := s.allow(ctx, fingerprint); err != nil {
		return dompost.Append{}, err
	}
	if strings.TrimSpace(content) == "" {
		return dompost.Append{}, domain.ErrContentEmpty
	}
	if len([]rune(content)) > s.cfg.MaxContentLen {
		return dompost.Append{}, domain.ErrContentTooLong
	}

	entry, err := s.repo.Append(ctx, postID, fingerprint, content)
	if err != nil {
		return dompost.Append{}, fmt.Errorf("append to post: %w", err)
	}

	s.notifyMentions(ctx, postID, fingerprint, name, content)

	return entry, nil
}

// Like records a like. Repeats from the same identity are success with the
// already-stored count.
func (s *Service) Like(ctx context.Context, postID, fingerprint, name string) (LikeResult, error) {
	if err := s.allow(ctx, fingerprint); err != nil {
		return LikeResult{}, err
	}

	p, err := s.repo.Get(ctx, postID)
	if err != nil {
		return LikeResult{}, fmt.Errorf("get post: %w", err)
	}

	inserted, count, err := s.likes.Add(ctx, postID, fingerprint)
	if err != nil {
		return LikeResult{}, fmt.Errorf("add like: %w", err)
	}

	result := "repeat"
	if inserted {
		result = "new"
		if !p.OwnedBy(fingerprint) {
			s.notify(ctx, p.AuthorFingerprint(), domnotif.KindLike, postID, name, domnotif.LikeMessage(name))
		}
	}
	metrics.LikesTotal.WithLabelValues(result).Inc()

	return LikeResult{Liked: inserted, Count: count}, nil
}

// Get materializes a thread: the post with its append log, its children in
// creation order, and the like count.
func (s *Service) Get(ctx context.Context, id string) (Thread, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Thread{}, fmt.Errorf("get post: %w", err)
	}
	children, err := s.repo.Children(ctx, id)
	if err != nil {
		return Thread{}, fmt.Errorf("get children: %w", err)
	}
	likes, err := s.likes.Count(ctx, id)
	if err != nil {
		return Thread{}, fmt.Errorf("count likes: %w", err)
	}
	return Thread{Post: p, Children: children, Likes: likes}, nil
}

// List returns top-level post summaries, newest first, optionally filtered
// by hashtag.
func (s *Service) List(ctx context.Context, hashtag string, offset, limit int) ([]dompost.Summary, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	listed, err := s.repo.List(ctx, hashtag, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	summaries := make([]dompost.Summary, 0, len(listed))
	for _, l := range listed {
		summaries = append(summaries, l.Post.Summarize(l.Likes, l.ReplyCount))
	}
	return summaries, nil
}

func (s *Service) allow(ctx context.Context, fingerprint string) error {
	ok, err := s.gate.Allow(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("rate gate: %w", err)
	}
	if !ok {
		metrics.ThrottledTotal.Inc()
		return domain.ErrThrottled
	}
	return nil
}

// nearestRecent returns the best match among the most recent posts.
func (s *Service) nearestRecent(vec []float32) (index.Hit, bool) {
	start := time.Now()
	hits := s.idx.SimilarTo(vec, index.Query{K: 1, Window: s.cfg.RecentWindow})
	metrics.SimilarityScanDuration.Observe(time.Since(start).Seconds())

	if len(hits) == 0 {
		return index.Hit{}, false
	}
	return hits[0], true
}

// notifyReply notifies the parent author. The parent is read after commit;
// a vanished parent just drops the notification.
func (s *Service) notifyReply(ctx context.Context, p *dompost.Post) {
	parent, err := s.repo.Get(ctx, p.ParentID())
	if err != nil {
		return
	}
	if parent.OwnedBy(p.AuthorFingerprint()) {
		return
	}
	s.notify(ctx, parent.AuthorFingerprint(), domnotif.KindReply, p.ID(),
		p.AuthorName(), domnotif.ReplyMessage(p.AuthorName()))
}

// notifyMentions emits one mention notification per distinct resolved
// display name, excluding the author.
func (s *Service) notifyMentions(ctx context.Context, postID, authorFP, authorName, content string) {
	for _, name := range domnotif.ExtractMentions(content) {
		if name == authorName {
			continue
		}
		ident, err := s.idents.ByDisplayName(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrIdentityNotFound) {
				continue
			}
			return
		}
		if ident.Fingerprint == authorFP {
			continue
		}
		s.notify(ctx, ident.Fingerprint, domnotif.KindMention, postID,
			authorName, domnotif.MentionMessage(authorName))
	}
}

// notify is best-effort: a failed notification write never fails the
// triggering operation.
func (s *Service) notify(ctx context.Context, recipient string, kind domnotif.Kind, postID, from, message string) {
	n := domnotif.Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Kind:      kind,
		PostID:    postID,
		From:      from,
		Message:   message,
		CreatedAt: s.clock.Now(),
	}
	if err := s.notifs.Create(ctx, n); err != nil {
		return
	}
	metrics.NotificationsTotal.WithLabelValues(string(kind)).Inc()
}
