package post

import (
	"context"
	"time"

	"github.com/kailas-cloud/bbs/internal/domain"
	domnotif "github.com/kailas-cloud/bbs/internal/domain/notification"
	dompost "github.com/kailas-cloud/bbs/internal/domain/post"
	"github.com/kailas-cloud/bbs/internal/index"
	postrepo "github.com/kailas-cloud/bbs/internal/repository/post"
)

// Repository defines the storage contract for posts.
type Repository interface {
	Create(ctx context.Context, p *dompost.Post) error
	Append(ctx context.Context, postID, fingerprint, content string) (dompost.Append, error)
	Get(ctx context.Context, id string) (dompost.Post, error)
	Children(ctx context.Context, id string) ([]dompost.Post, error)
	List(ctx context.Context, hashtag string, offset, limit int) ([]postrepo.Listed, error)
}

// LikeRepository stores like rows as a set keyed by (post, identity).
type LikeRepository interface {
	Add(ctx context.Context, postID, fingerprint string) (inserted bool, count int, err error)
	Count(ctx context.Context, postID string) (int, error)
}

// NotificationWriter records derived notifications.
type NotificationWriter interface {
	Create(ctx context.Context, n domnotif.Notification) error
}

// IdentityReader resolves display names for mention notifications.
type IdentityReader interface {
	ByDisplayName(ctx context.Context, name string) (domain.Identity, error)
}

// Gate throttles mutating operations per identity.
type Gate interface {
	Allow(ctx context.Context, fingerprint string) (bool, error)
}

// Inserter receives committed post vectors.
type Inserter interface {
	Insert(e index.Entry)
	SimilarTo(query []float32, q index.Query) []index.Hit
}

// Clock issues server timestamps.
type Clock interface {
	Now() time.Time
}
