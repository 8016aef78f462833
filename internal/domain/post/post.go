// Package post holds the Post aggregate. A post's core fields are immutable
// once committed; only the ordered append log may grow, and only through the
// content store.
package post

import (
	"strings"
	"time"

	"github.com/kailas-cloud/bbs/internal/domain"
)

// PreviewLen is the number of content characters carried by a Summary.
const PreviewLen = 200

// Append is one entry in a post's append log. Appends are owned by their
// post and are never independently addressable.
type Append struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// Post is the post aggregate (immutable after commit, unexported fields).
type Post struct {
	id                string
	authorFingerprint string
	authorName        string
	createdAt         time.Time
	content           string
	vector            []float32
	hashtags          []string
	parentID          string
	appends           []Append
}

// New validates and creates an uncommitted Post. The id and creation
// timestamp are assigned by the content store at commit time.
func New(authorFingerprint, authorName, content string, vec []float32,
	hashtags []string, parentID string, maxContentLen int,
) (Post, error) {
	if strings.TrimSpace(content) == "" {
		return Post{}, domain.ErrContentEmpty
	}
	// Length is measured in runes, matching the append path and Preview.
	if len([]rune(content)) > maxContentLen {
		return Post{}, domain.ErrContentTooLong
	}
	return Post{
		authorFingerprint: authorFingerprint,
		authorName:        authorName,
		content:           content,
		vector:            vec,
		hashtags:          cloneStrings(hashtags),
		parentID:          parentID,
	}, nil
}

// Reconstruct creates a Post without validation (storage hydration).
func Reconstruct(id, authorFingerprint, authorName string, createdAt time.Time,
	content string, vec []float32, hashtags []string, parentID string, appends []Append,
) Post {
	return Post{
		id:                id,
		authorFingerprint: authorFingerprint,
		authorName:        authorName,
		createdAt:         createdAt,
		content:           content,
		vector:            vec,
		hashtags:          hashtags,
		parentID:          parentID,
		appends:           appends,
	}
}

// Stamp assigns the server id and creation timestamp at commit time.
func (p *Post) Stamp(id string, at time.Time) {
	p.id = id
	p.createdAt = at
}

// ID returns the server-assigned post id.
func (p *Post) ID() string { return p.id }

// AuthorFingerprint returns the author's public-key fingerprint.
func (p *Post) AuthorFingerprint() string { return p.authorFingerprint }

// AuthorName returns the author's display name.
func (p *Post) AuthorName() string { return p.authorName }

// CreatedAt returns the server-assigned creation timestamp.
func (p *Post) CreatedAt() time.Time { return p.createdAt }

// Content returns the markdown body.
func (p *Post) Content() string { return p.content }

// Vector returns the embedding vector.
func (p *Post) Vector() []float32 { return p.vector }

// Hashtags returns the post's hashtags.
func (p *Post) Hashtags() []string { return p.hashtags }

// ParentID returns the parent post id, empty for top-level posts.
func (p *Post) ParentID() string { return p.parentID }

// Appends returns the ordered append log.
func (p *Post) Appends() []Append { return p.appends }

// IsReply reports whether the post has a parent.
func (p *Post) IsReply() bool { return p.parentID != "" }

// OwnedBy reports whether fingerprint is the original author. Only the
// author may grow the append log.
func (p *Post) OwnedBy(fingerprint string) bool {
	return p.authorFingerprint == fingerprint
}

// HasHashtag reports whether the post carries the given hashtag.
func (p *Post) HasHashtag(tag string) bool {
	for _, h := range p.hashtags {
		if h == tag {
			return true
		}
	}
	return false
}

// Preview returns the first PreviewLen characters of content for summaries.
func (p *Post) Preview() string {
	r := []rune(p.content)
	if len(r) <= PreviewLen {
		return p.content
	}
	return string(r[:PreviewLen])
}

// Summary is the abbreviated listing form of a post.
type Summary struct {
	ID             string
	Author         string
	CreatedAt      time.Time
	ContentPreview string
	Hashtags       []string
	Likes          int
	ReplyCount     int
}

// Summarize builds a Summary for the post with the given counters.
func (p *Post) Summarize(likes, replyCount int) Summary {
	return Summary{
		ID:             p.id,
		Author:         p.authorName,
		CreatedAt:      p.createdAt,
		ContentPreview: p.Preview(),
		Hashtags:       p.hashtags,
		Likes:          likes,
		ReplyCount:     replyCount,
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
