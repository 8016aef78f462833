package like

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kailas-cloud/bbs/internal/repository/sqlite"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bbs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	seed := []string{
		`INSERT INTO identities (fingerprint, display_name, admitted, created_at) VALUES ('fp-a', 'alice', 1, 0)`,
		`INSERT INTO identities (fingerprint, display_name, admitted, created_at) VALUES ('fp-b', 'bob', 1, 0)`,
		`INSERT INTO posts (id, author_fingerprint, author_name, created_at, content, vector, hashtags)
		 VALUES ('p1', 'fp-a', 'alice', 1, 'hello', x'0000803f', '[]')`,
	}
	for _, q := range seed {
		if _, err := store.DB().Exec(q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return New(store)
}

func TestAdd_FirstLike(t *testing.T) {
	r := newTestRepo(t)

	inserted, count, err := r.Add(context.Background(), "p1", "fp-b")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !inserted {
		t.Error("first like must report inserted")
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestAdd_RepeatIsNoOpSuccess(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, _, err := r.Add(ctx, "p1", "fp-b"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	inserted, count, err := r.Add(ctx, "p1", "fp-b")
	if err != nil {
		t.Fatalf("repeat like must not error: %v", err)
	}
	if inserted {
		t.Error("repeat like must not report inserted")
	}
	if count != 1 {
		t.Errorf("count after repeat = %d, want 1", count)
	}
}

func TestAdd_ConcurrentIdenticalCollapse(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	insertions := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, _, err := r.Add(ctx, "p1", "fp-b")
			if err != nil {
				t.Errorf("concurrent like: %v", err)
				return
			}
			insertions <- inserted
		}()
	}
	wg.Wait()
	close(insertions)

	newLikes := 0
	for in := range insertions {
		if in {
			newLikes++
		}
	}
	if newLikes != 1 {
		t.Errorf("exactly one caller must observe the insert, got %d", newLikes)
	}

	count, err := r.Count(ctx, "p1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("stored count = %d, want 1", count)
	}
}

func TestAdd_ConcurrentDistinctIdentities(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	// A file-backed store under many simultaneous writers: every single
	// call must wait out the lock and succeed, never surface SQLITE_BUSY.
	const callers = 64
	for i := 0; i < callers; i++ {
		q := fmt.Sprintf(
			`INSERT INTO identities (fingerprint, display_name, admitted, created_at)
			 VALUES ('fp-%d', 'user-%d', 1, 0)`, i, i)
		if _, err := r.store.DB().Exec(q); err != nil {
			t.Fatalf("seed identity %d: %v", i, err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			inserted, _, err := r.Add(ctx, "p1", fmt.Sprintf("fp-%d", n))
			if err != nil {
				t.Errorf("like from fp-%d: %v", n, err)
				return
			}
			if !inserted {
				t.Errorf("like from fp-%d must report inserted", n)
			}
		}(i)
	}
	wg.Wait()

	count, err := r.Count(ctx, "p1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != callers {
		t.Errorf("stored count = %d, want %d", count, callers)
	}
}

func TestCounts_Batch(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, _, err := r.Add(ctx, "p1", "fp-a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, _, err := r.Add(ctx, "p1", "fp-b"); err != nil {
		t.Fatalf("add: %v", err)
	}

	counts, err := r.Counts(ctx, []string{"p1", "p-missing"})
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["p1"] != 2 {
		t.Errorf("p1 count = %d, want 2", counts["p1"])
	}
	if counts["p-missing"] != 0 {
		t.Errorf("missing post count = %d, want 0", counts["p-missing"])
	}

	empty, err := r.Counts(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty batch: %v, %v", empty, err)
	}
}
