package post

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/bbs/internal/domain"
	domnotif "github.com/kailas-cloud/bbs/internal/domain/notification"
	dompost "github.com/kailas-cloud/bbs/internal/domain/post"
	"github.com/kailas-cloud/bbs/internal/index"
	postrepo "github.com/kailas-cloud/bbs/internal/repository/post"
)

// --- Mocks ---

type mockRepo struct {
	created   []*dompost.Post
	createErr error

	appendResult dompost.Append
	appendErr    error

	posts  map[string]dompost.Post
	getErr error

	children    []dompost.Post
	childrenErr error

	listed  []postrepo.Listed
	listErr error
}

func (m *mockRepo) Create(_ context.Context, p *dompost.Post) error {
	if m.createErr != nil {
		return m.createErr
	}
	p.Stamp("post-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	m.created = append(m.created, p)
	return nil
}

func (m *mockRepo) Append(_ context.Context, _, _, _ string) (dompost.Append, error) {
	return m.appendResult, m.appendErr
}

func (m *mockRepo) Get(_ context.Context, id string) (dompost.Post, error) {
	if m.getErr != nil {
		return dompost.Post{}, m.getErr
	}
	p, ok := m.posts[id]
	if !ok {
		return dompost.Post{}, domain.ErrPostNotFound
	}
	return p, nil
}

func (m *mockRepo) Children(_ context.Context, _ string) ([]dompost.Post, error) {
	return m.children, m.childrenErr
}

func (m *mockRepo) List(_ context.Context, _ string, _, _ int) ([]postrepo.Listed, error) {
	return m.listed, m.listErr
}

type mockLikes struct {
	inserted bool
	count    int
	addErr   error
}

func (m *mockLikes) Add(_ context.Context, _, _ string) (bool, int, error) {
	return m.inserted, m.count, m.addErr
}

func (m *mockLikes) Count(_ context.Context, _ string) (int, error) {
	return m.count, nil
}

type mockNotifs struct {
	created []domnotif.Notification
	err     error
}

func (m *mockNotifs) Create(_ context.Context, n domnotif.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, n)
	return nil
}

type mockIdents struct {
	byName map[string]domain.Identity
}

func (m *mockIdents) ByDisplayName(_ context.Context, name string) (domain.Identity, error) {
	id, ok := m.byName[name]
	if !ok {
		return domain.Identity{}, domain.ErrIdentityNotFound
	}
	return id, nil
}

type mockGate struct {
	allowed bool
	err     error
	calls   int
}

func (m *mockGate) Allow(_ context.Context, _ string) (bool, error) {
	m.calls++
	return m.allowed, m.err
}

type mockIndex struct {
	inserted []index.Entry
	hits     []index.Hit
	lastQ    index.Query
}

func (m *mockIndex) Insert(e index.Entry) {
	m.inserted = append(m.inserted, e)
}

func (m *mockIndex) SimilarTo(_ []float32, q index.Query) []index.Hit {
	m.lastQ = q
	return m.hits
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func testConfig() Config {
	return Config{
		VectorDim:           3,
		MaxContentLen:       100,
		SimilarityThreshold: 0.85,
		RecentWindow:        1000,
	}
}

func newService(repo *mockRepo, likes *mockLikes, notifs *mockNotifs,
	idents *mockIdents, idx *mockIndex, gate *mockGate,
) *Service {
	return New(repo, likes, notifs, idents, idx, gate,
		fixedClock{at: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)}, testConfig())
}

func makePost(t *testing.T, id, fp, name, content, parentID string) dompost.Post {
	t.Helper()
	return dompost.Reconstruct(id, fp, name, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		content, []float32{1, 0, 0}, nil, parentID, nil)
}

// --- Create tests ---

func TestCreate_Accepted(t *testing.T) {
	repo := &mockRepo{}
	idx := &mockIndex{}
	notifs := &mockNotifs{}
	svc := newService(repo, &mockLikes{}, notifs, &mockIdents{}, idx, &mockGate{allowed: true})

	res, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		AuthorName:        "alice",
		Content:           "hello world",
		Vector:            []float32{1, 0, 0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionAccepted {
		t.Errorf("expected accepted, got %s", res.Decision)
	}
	if res.Post.ID() != "post-1" {
		t.Errorf("expected committed post id, got %q", res.Post.ID())
	}
	if len(idx.inserted) != 1 || idx.inserted[0].PostID != "post-1" {
		t.Errorf("expected one index insert for post-1, got %+v", idx.inserted)
	}
	if len(notifs.created) != 0 {
		t.Errorf("expected no notifications, got %d", len(notifs.created))
	}
}

func TestCreate_WarnedOverThreshold(t *testing.T) {
	repo := &mockRepo{}
	idx := &mockIndex{hits: []index.Hit{{PostID: "earlier", Score: 0.9}}}
	svc := newService(repo, &mockLikes{}, &mockNotifs{}, &mockIdents{}, idx, &mockGate{allowed: true})

	res, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		AuthorName:        "alice",
		Content:           "hello world",
		Vector:            []float32{1, 0, 0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionWarned {
		t.Fatalf("expected warned, got %s", res.Decision)
	}
	if res.SimilarPostID != "earlier" || res.Similarity != 0.9 {
		t.Errorf("expected nearest post in result, got %+v", res)
	}
	if len(repo.created) != 0 {
		t.Error("warned submission must not be committed")
	}
	if len(idx.inserted) != 0 {
		t.Error("warned submission must not reach the index")
	}
	if idx.lastQ.K != 1 || idx.lastQ.Window != 1000 {
		t.Errorf("expected top-1 scan over the recent window, got %+v", idx.lastQ)
	}
}

func TestCreate_ForceBypassesGuard(t *testing.T) {
	repo := &mockRepo{}
	idx := &mockIndex{hits: []index.Hit{{PostID: "earlier", Score: 0.99}}}
	svc := newService(repo, &mockLikes{}, &mockNotifs{}, &mockIdents{}, idx, &mockGate{allowed: true})

	res, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		AuthorName:        "alice",
		Content:           "hello world",
		Vector:            []float32{1, 0, 0},
		Force:             true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionForcedAccepted {
		t.Errorf("expected forced_accepted, got %s", res.Decision)
	}
	if len(repo.created) != 1 {
		t.Error("forced submission must be committed")
	}
}

func TestCreate_JustBelowThresholdAccepted(t *testing.T) {
	repo := &mockRepo{}
	idx := &mockIndex{hits: []index.Hit{{PostID: "earlier", Score: 0.8499}}}
	svc := newService(repo, &mockLikes{}, &mockNotifs{}, &mockIdents{}, idx, &mockGate{allowed: true})

	res, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		AuthorName:        "alice",
		Content:           "hello world",
		Vector:            []float32{1, 0, 0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionAccepted {
		t.Errorf("expected accepted below threshold, got %s", res.Decision)
	}
}

func TestCreate_Throttled(t *testing.T) {
	svc := newService(&mockRepo{}, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: false})

	_, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		Content:           "hello",
		Vector:            []float32{1, 0, 0},
	})
	if !errors.Is(err, domain.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

func TestCreate_DimMismatch(t *testing.T) {
	svc := newService(&mockRepo{}, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	_, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		Content:           "hello",
		Vector:            []float32{1, 0},
	})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestCreate_EmptyContent(t *testing.T) {
	svc := newService(&mockRepo{}, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	_, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		Content:           "   ",
		Vector:            []float32{1, 0, 0},
	})
	if !errors.Is(err, domain.ErrContentEmpty) {
		t.Fatalf("expected ErrContentEmpty, got %v", err)
	}
}

func TestCreate_ReplyNotifiesParentAuthor(t *testing.T) {
	parent := makePost(t, "parent-1", "fp-b", "bob", "original", "")
	repo := &mockRepo{posts: map[string]dompost.Post{"parent-1": parent}}
	notifs := &mockNotifs{}
	svc := newService(repo, &mockLikes{}, notifs, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	_, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		AuthorName:        "alice",
		Content:           "a reply",
		Vector:            []float32{1, 0, 0},
		ParentID:          "parent-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifs.created) != 1 {
		t.Fatalf("expected one reply notification, got %d", len(notifs.created))
	}
	n := notifs.created[0]
	if n.Kind != domnotif.KindReply || n.Recipient != "fp-b" || n.From != "alice" {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestCreate_SelfReplyNotNotified(t *testing.T) {
	parent := makePost(t, "parent-1", "fp-a", "alice", "original", "")
	repo := &mockRepo{posts: map[string]dompost.Post{"parent-1": parent}}
	notifs := &mockNotifs{}
	svc := newService(repo, &mockLikes{}, notifs, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	_, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		AuthorName:        "alice",
		Content:           "replying to myself",
		Vector:            []float32{1, 0, 0},
		ParentID:          "parent-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifs.created) != 0 {
		t.Errorf("expected no notification for self-reply, got %d", len(notifs.created))
	}
}

func TestCreate_MentionsResolvedAndDeduplicated(t *testing.T) {
	repo := &mockRepo{}
	notifs := &mockNotifs{}
	idents := &mockIdents{byName: map[string]domain.Identity{
		"bob":   {Fingerprint: "fp-b", DisplayName: "bob"},
		"carol": {Fingerprint: "fp-c", DisplayName: "carol"},
	}}
	svc := newService(repo, &mockLikes{}, notifs, idents, &mockIndex{}, &mockGate{allowed: true})

	_, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		AuthorName:        "alice",
		Content:           "hi @bob and @carol, also @bob again and @alice and @nobody",
		Vector:            []float32{1, 0, 0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifs.created) != 2 {
		t.Fatalf("expected 2 mention notifications, got %d", len(notifs.created))
	}
	recipients := map[string]bool{}
	for _, n := range notifs.created {
		if n.Kind != domnotif.KindMention {
			t.Errorf("expected mention kind, got %s", n.Kind)
		}
		recipients[n.Recipient] = true
	}
	if !recipients["fp-b"] || !recipients["fp-c"] {
		t.Errorf("expected notifications for fp-b and fp-c, got %v", recipients)
	}
}

func TestCreate_NotificationFailureDoesNotFailPost(t *testing.T) {
	parent := makePost(t, "parent-1", "fp-b", "bob", "original", "")
	repo := &mockRepo{posts: map[string]dompost.Post{"parent-1": parent}}
	notifs := &mockNotifs{err: errors.New("disk full")}
	svc := newService(repo, &mockLikes{}, notifs, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	res, err := svc.Create(context.Background(), CreateInput{
		AuthorFingerprint: "fp-a",
		AuthorName:        "alice",
		Content:           "a reply",
		Vector:            []float32{1, 0, 0},
		ParentID:          "parent-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionAccepted {
		t.Errorf("expected accepted, got %s", res.Decision)
	}
}

// --- Append tests ---

func TestAppend_Success(t *testing.T) {
	repo := &mockRepo{appendResult: dompost.Append{Content: "more"}}
	svc := newService(repo, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	entry, err := svc.Append(context.Background(), "post-1", "fp-a", "alice", "more")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Content != "more" {
		t.Errorf("expected append entry, got %+v", entry)
	}
}

func TestAppend_EmptyContent(t *testing.T) {
	svc := newService(&mockRepo{}, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	_, err := svc.Append(context.Background(), "post-1", "fp-a", "alice", " ")
	if !errors.Is(err, domain.ErrContentEmpty) {
		t.Fatalf("expected ErrContentEmpty, got %v", err)
	}
}

func TestAppend_ForbiddenPassesThrough(t *testing.T) {
	repo := &mockRepo{appendErr: domain.ErrForbiddenAppend}
	svc := newService(repo, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	_, err := svc.Append(context.Background(), "post-1", "fp-intruder", "eve", "sneaky")
	if !errors.Is(err, domain.ErrForbiddenAppend) {
		t.Fatalf("expected ErrForbiddenAppend, got %v", err)
	}
}

func TestAppend_Throttled(t *testing.T) {
	svc := newService(&mockRepo{}, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: false})

	_, err := svc.Append(context.Background(), "post-1", "fp-a", "alice", "more")
	if !errors.Is(err, domain.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

// --- Like tests ---

func TestLike_NewLikeNotifiesAuthor(t *testing.T) {
	target := makePost(t, "post-1", "fp-b", "bob", "content", "")
	repo := &mockRepo{posts: map[string]dompost.Post{"post-1": target}}
	notifs := &mockNotifs{}
	svc := newService(repo, &mockLikes{inserted: true, count: 1}, notifs, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	res, err := svc.Like(context.Background(), "post-1", "fp-a", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Liked || res.Count != 1 {
		t.Errorf("expected new like with count 1, got %+v", res)
	}
	if len(notifs.created) != 1 || notifs.created[0].Kind != domnotif.KindLike {
		t.Fatalf("expected one like notification, got %+v", notifs.created)
	}
}

func TestLike_RepeatIsSuccessWithoutNotification(t *testing.T) {
	target := makePost(t, "post-1", "fp-b", "bob", "content", "")
	repo := &mockRepo{posts: map[string]dompost.Post{"post-1": target}}
	notifs := &mockNotifs{}
	svc := newService(repo, &mockLikes{inserted: false, count: 3}, notifs, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	res, err := svc.Like(context.Background(), "post-1", "fp-a", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Liked || res.Count != 3 {
		t.Errorf("expected repeat like with existing count 3, got %+v", res)
	}
	if len(notifs.created) != 0 {
		t.Errorf("expected no notification for repeat like, got %d", len(notifs.created))
	}
}

func TestLike_OwnPostNotNotified(t *testing.T) {
	target := makePost(t, "post-1", "fp-a", "alice", "content", "")
	repo := &mockRepo{posts: map[string]dompost.Post{"post-1": target}}
	notifs := &mockNotifs{}
	svc := newService(repo, &mockLikes{inserted: true, count: 1}, notifs, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	if _, err := svc.Like(context.Background(), "post-1", "fp-a", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifs.created) != 0 {
		t.Errorf("expected no notification for liking own post, got %d", len(notifs.created))
	}
}

func TestLike_UnknownPost(t *testing.T) {
	repo := &mockRepo{posts: map[string]dompost.Post{}}
	svc := newService(repo, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	_, err := svc.Like(context.Background(), "nope", "fp-a", "alice")
	if !errors.Is(err, domain.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

// --- Read path tests ---

func TestGet_Thread(t *testing.T) {
	target := makePost(t, "post-1", "fp-a", "alice", "content", "")
	child := makePost(t, "post-2", "fp-b", "bob", "reply", "post-1")
	repo := &mockRepo{
		posts:    map[string]dompost.Post{"post-1": target},
		children: []dompost.Post{child},
	}
	svc := newService(repo, &mockLikes{count: 2}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	th, err := svc.Get(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th.Post.ID() != "post-1" || len(th.Children) != 1 || th.Likes != 2 {
		t.Errorf("unexpected thread %+v", th)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := &mockRepo{}
	svc := newService(repo, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	if _, err := svc.List(context.Background(), "", 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.List(context.Background(), "", -5, 10_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestList_Summaries(t *testing.T) {
	target := makePost(t, "post-1", "fp-a", "alice", "content", "")
	repo := &mockRepo{listed: []postrepo.Listed{{Post: target, Likes: 4, ReplyCount: 2}}}
	svc := newService(repo, &mockLikes{}, &mockNotifs{}, &mockIdents{}, &mockIndex{}, &mockGate{allowed: true})

	sums, err := svc.List(context.Background(), "", 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("expected one summary, got %d", len(sums))
	}
	if sums[0].Likes != 4 || sums[0].ReplyCount != 2 {
		t.Errorf("unexpected summary %+v", sums[0])
	}
}
