// Package post is the content store: posts are committed atomically, their
// core fields never change, and only the append log grows.
package post

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/bbs/internal/domain"
	dompost "github.com/kailas-cloud/bbs/internal/domain/post"
	"github.com/kailas-cloud/bbs/internal/repository/sqlite"
)

// Repo implements the content store over SQLite.
type Repo struct {
	store *sqlite.Store

	// locks serializes appends per post id; appends to different posts
	// proceed in parallel. A global lock here would serialize unrelated
	// writers for no reason.
	locks sync.Map // post id -> *sync.Mutex
}

// New creates a content store repository.
func New(store *sqlite.Store) *Repo {
	return &Repo{store: store}
}

// Listed is a post joined with its listing counters.
type Listed struct {
	Post       dompost.Post
	Likes      int
	ReplyCount int
}

// Create commits a new post in one transaction: the server id and timestamp
// are assigned here, and a reader never observes a partial row.
func (r *Repo) Create(ctx context.Context, p *dompost.Post) error {
	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if p.ParentID() != "" {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM posts WHERE id = ?`, p.ParentID()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUnknownParent
		}
		if err != nil {
			return fmt.Errorf("resolve parent %s: %w", p.ParentID(), err)
		}
	}

	p.Stamp(uuid.NewString(), r.store.Clock().Now())

	tags, err := json.Marshal(emptyIfNil(p.Hashtags()))
	if err != nil {
		return fmt.Errorf("marshal hashtags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts
			(id, author_fingerprint, author_name, created_at, content, vector, hashtags, parent_id, appends)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '[]')`,
		p.ID(), p.AuthorFingerprint(), p.AuthorName(), p.CreatedAt().UnixNano(),
		p.Content(), sqlite.EncodeVector(p.Vector()), string(tags), nullable(p.ParentID()),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit post: %w", err)
	}
	return nil
}

// Append grows a post's append log. Only the original author may append;
// the fresh timestamp is at or after the post's own and the previous
// append's. Appends to the same post are serialized by a per-post lock so
// log order matches commit order.
func (r *Repo) Append(ctx context.Context, postID, fingerprint, content string) (dompost.Append, error) {
	mu := r.lockFor(postID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return dompost.Append{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var author, rawAppends string
	err = tx.QueryRowContext(ctx,
		`SELECT author_fingerprint, appends FROM posts WHERE id = ?`, postID,
	).Scan(&author, &rawAppends)
	if errors.Is(err, sql.ErrNoRows) {
		return dompost.Append{}, domain.ErrPostNotFound
	}
	if err != nil {
		return dompost.Append{}, fmt.Errorf("load post %s: %w", postID, err)
	}
	if author != fingerprint {
		return dompost.Append{}, domain.ErrForbiddenAppend
	}

	var appends []dompost.Append
	if err := json.Unmarshal([]byte(rawAppends), &appends); err != nil {
		return dompost.Append{}, fmt.Errorf("decode append log %s: %w", postID, err)
	}

	entry := dompost.Append{Timestamp: r.store.Clock().Now(), Content: content}
	appends = append(appends, entry)

	data, err := json.Marshal(appends)
	if err != nil {
		return dompost.Append{}, fmt.Errorf("encode append log: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET appends = ? WHERE id = ?`, string(data), postID); err != nil {
		return dompost.Append{}, fmt.Errorf("update append log %s: %w", postID, err)
	}

	if err := tx.Commit(); err != nil {
		return dompost.Append{}, fmt.Errorf("commit append: %w", err)
	}
	return entry, nil
}

// Get returns a post with its full append log.
func (r *Repo) Get(ctx context.Context, id string) (dompost.Post, error) {
	row := r.store.DB().QueryRowContext(ctx, selectPost+` WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return dompost.Post{}, domain.ErrPostNotFound
	}
	if err != nil {
		return dompost.Post{}, fmt.Errorf("get post %s: %w", id, err)
	}
	return p, nil
}

// Children returns all posts whose parent is id, in creation order.
func (r *Repo) Children(ctx context.Context, id string) ([]dompost.Post, error) {
	rows, err := r.store.DB().QueryContext(ctx,
		selectPost+` WHERE parent_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", id, err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// List returns top-level posts newest first, ties broken by id ascending,
// optionally narrowed to a hashtag, with like and reply counters.
func (r *Repo) List(ctx context.Context, hashtag string, offset, limit int) ([]Listed, error) {
	query := selectListed + ` WHERE p.parent_id IS NULL`
	args := []any{}
	if hashtag != "" {
		query += ` AND p.hashtags LIKE ?`
		args = append(args, `%"`+hashtag+`"%`)
	}
	query += ` ORDER BY p.created_at DESC, p.id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var listed []Listed
	for rows.Next() {
		l, err := scanListed(rows)
		if err != nil {
			return nil, err
		}
		listed = append(listed, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return listed, nil
}

// ListByIDs returns the given posts with their listing counters. Order of
// the result is unspecified; absent ids are skipped.
func (r *Repo) ListByIDs(ctx context.Context, ids []string) ([]Listed, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := selectListed + ` WHERE p.id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts by ids: %w", err)
	}
	defer rows.Close()

	var listed []Listed
	for rows.Next() {
		l, err := scanListed(rows)
		if err != nil {
			return nil, err
		}
		listed = append(listed, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return listed, nil
}

// All streams every post in creation order; the vector index rebuilds its
// derived copy from this at startup.
func (r *Repo) All(ctx context.Context, fn func(p dompost.Post) error) error {
	rows, err := r.store.DB().QueryContext(ctx,
		selectPost+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("query all posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate posts: %w", err)
	}
	return nil
}

func (r *Repo) lockFor(postID string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(postID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

const selectPost = `
	SELECT id, author_fingerprint, author_name, created_at, content, vector,
	       hashtags, COALESCE(parent_id, ''), appends
	FROM posts`

const selectListed = `
	SELECT p.id, p.author_fingerprint, p.author_name, p.created_at, p.content,
	       p.vector, p.hashtags, COALESCE(p.parent_id, ''), p.appends,
	       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
	       (SELECT COUNT(*) FROM posts c WHERE c.parent_id = p.id)
	FROM posts p`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (dompost.Post, error) {
	var (
		id, authorFP, authorName, content, rawTags, parentID, rawAppends string
		createdNanos                                                     int64
		blob                                                             []byte
	)
	if err := row.Scan(&id, &authorFP, &authorName, &createdNanos, &content,
		&blob, &rawTags, &parentID, &rawAppends); err != nil {
		return dompost.Post{}, err
	}
	return hydrate(id, authorFP, authorName, createdNanos, content, blob, rawTags, parentID, rawAppends)
}

func scanListed(row rowScanner) (Listed, error) {
	var (
		id, authorFP, authorName, content, rawTags, parentID, rawAppends string
		createdNanos                                                     int64
		blob                                                             []byte
		likes, replies                                                   int
	)
	if err := row.Scan(&id, &authorFP, &authorName, &createdNanos, &content,
		&blob, &rawTags, &parentID, &rawAppends, &likes, &replies); err != nil {
		return Listed{}, fmt.Errorf("scan listed post: %w", err)
	}
	p, err := hydrate(id, authorFP, authorName, createdNanos, content, blob, rawTags, parentID, rawAppends)
	if err != nil {
		return Listed{}, err
	}
	return Listed{Post: p, Likes: likes, ReplyCount: replies}, nil
}

func hydrate(id, authorFP, authorName string, createdNanos int64, content string,
	blob []byte, rawTags, parentID, rawAppends string,
) (dompost.Post, error) {
	vec, err := sqlite.DecodeVector(blob)
	if err != nil {
		return dompost.Post{}, fmt.Errorf("decode vector of %s: %w", id, err)
	}
	var tags []string
	if err := json.Unmarshal([]byte(rawTags), &tags); err != nil {
		return dompost.Post{}, fmt.Errorf("decode hashtags of %s: %w", id, err)
	}
	var appends []dompost.Append
	if err := json.Unmarshal([]byte(rawAppends), &appends); err != nil {
		return dompost.Post{}, fmt.Errorf("decode append log of %s: %w", id, err)
	}
	return dompost.Reconstruct(
		id, authorFP, authorName, time.Unix(0, createdNanos).UTC(),
		content, vec, tags, parentID, appends,
	), nil
}

func scanPosts(rows *sql.Rows) ([]dompost.Post, error) {
	var posts []dompost.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
