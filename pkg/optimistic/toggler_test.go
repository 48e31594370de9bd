package optimistic

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/atelier-dev/atelier/pkg/metrics"
	"github.com/atelier-dev/atelier/pkg/platform"
	"github.com/atelier-dev/atelier/pkg/query"
	"github.com/atelier-dev/atelier/pkg/toast"
)

// fakeRemote is a controllable platform.Mutator.
type fakeRemote struct {
	mu          sync.Mutex
	toggleCalls []platform.ToggleLikeRequest
	addCalls    []platform.CollectionAddRequest
	removeCalls []platform.CollectionRemoveRequest

	toggleErr error
	addErr    map[string]error // keyed by collection ID
	removeErr error

	// block, when non-nil, parks ToggleLike until closed.
	block chan struct{}
	// addBlock, when non-nil, parks AddToCollection until closed.
	addBlock chan struct{}
}

func (f *fakeRemote) ToggleLike(ctx context.Context, req platform.ToggleLikeRequest) (platform.ToggleLikeResult, error) {
	f.mu.Lock()
	f.toggleCalls = append(f.toggleCalls, req)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.toggleErr != nil {
		return platform.ToggleLikeResult{}, f.toggleErr
	}
	return platform.ToggleLikeResult{OK: true}, nil
}

func (f *fakeRemote) AddToCollection(ctx context.Context, req platform.CollectionAddRequest) (platform.CollectionMutationResult, error) {
	f.mu.Lock()
	f.addCalls = append(f.addCalls, req)
	addBlock := f.addBlock
	f.mu.Unlock()

	if addBlock != nil {
		<-addBlock
	}
	if err := f.addErr[req.CollectionID]; err != nil {
		res := platform.CollectionMutationResult{}
		if errors.Is(err, platform.ErrConflict) {
			res.Duplicate = true
		}
		return res, err
	}
	return platform.CollectionMutationResult{OK: true}, nil
}

func (f *fakeRemote) RemoveFromCollection(ctx context.Context, req platform.CollectionRemoveRequest) (platform.CollectionMutationResult, error) {
	f.mu.Lock()
	f.removeCalls = append(f.removeCalls, req)
	f.mu.Unlock()

	if f.removeErr != nil {
		return platform.CollectionMutationResult{}, f.removeErr
	}
	return platform.CollectionMutationResult{OK: true}, nil
}

func (f *fakeRemote) toggleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.toggleCalls)
}

// fakeSessions is a static platform.SessionSource.
type fakeSessions struct {
	session *platform.Session
	err     error
}

func (f *fakeSessions) GetSession(ctx context.Context) (*platform.Session, error) {
	return f.session, f.err
}

func signedIn() *fakeSessions {
	return &fakeSessions{session: &platform.Session{User: platform.User{ID: "u1", Name: "Ada"}}}
}

func newTestToggler(remote *fakeRemote, sessions platform.SessionSource) (*Toggler, *query.Cache, *toast.Recorder) {
	cache := query.New()
	rec := toast.NewRecorder()
	t := New(cache, remote, sessions, rec)
	return t, cache, rec
}

func seedItem42(cache *query.Cache, keys ...query.Key) {
	for _, key := range keys {
		cache.SetPage(key, 0, query.Page{
			{ID: 41, LikeCount: 1},
			{ID: 42, LikeCount: 3, HasLiked: false},
		})
	}
}

func TestToggleLikeOptimisticThenRollback(t *testing.T) {
	remote := &fakeRemote{
		block:     make(chan struct{}),
		toggleErr: errors.New("remote rejected"),
	}
	tg, cache, rec := newTestToggler(remote, signedIn())
	seedItem42(cache, "feed:public")

	before := cache.Pages("feed:public")

	if err := tg.ToggleLike(context.Background(), 42); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}

	// The optimistic value is visible synchronously, while the remote
	// call is still parked.
	it, ok := cache.Find("feed", 42)
	if !ok {
		t.Fatal("item 42 missing")
	}
	if !it.HasLiked || it.LikeCount != 4 {
		t.Fatalf("expected optimistic {HasLiked:true LikeCount:4}, got %+v", it)
	}

	// Let the remote call fail and settle.
	close(remote.block)
	tg.Wait()

	after := cache.Pages("feed:public")
	if !reflect.DeepEqual(after, before) {
		t.Errorf("rollback drifted:\n got %+v\nwant %+v", after, before)
	}

	notes := rec.All()
	if len(notes) != 1 || notes[0].Level != toast.LevelError {
		t.Fatalf("expected exactly one error notification, got %+v", notes)
	}
}

func TestToggleLikeSuccessLeavesOptimisticState(t *testing.T) {
	remote := &fakeRemote{}
	tg, cache, rec := newTestToggler(remote, signedIn())
	seedItem42(cache, "feed:public")

	if err := tg.ToggleLike(context.Background(), 42); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	tg.Wait()

	it, _ := cache.Find("feed", 42)
	if !it.HasLiked || it.LikeCount != 4 {
		t.Errorf("expected {HasLiked:true LikeCount:4} after success, got %+v", it)
	}
	if rec.Count() != 0 {
		t.Errorf("success should be silent, got %+v", rec.All())
	}

	if got := remote.toggleCalls[0]; got.ItemID != 42 || !got.Liked || got.UserID != "u1" {
		t.Errorf("unexpected remote request: %+v", got)
	}
}

func TestNoNegativeCount(t *testing.T) {
	remote := &fakeRemote{}
	tg, cache, _ := newTestToggler(remote, signedIn())
	cache.SetPage("feed:public", 0, query.Page{{ID: 7, LikeCount: 0, HasLiked: true}})

	if err := tg.ToggleLike(context.Background(), 7); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	tg.Wait()

	it, _ := cache.Find("feed", 7)
	if it.LikeCount != 0 {
		t.Errorf("count went negative: %d", it.LikeCount)
	}
	if it.HasLiked {
		t.Error("HasLiked not flipped")
	}
}

func TestAtMostOneInFlight(t *testing.T) {
	remote := &fakeRemote{block: make(chan struct{})}
	tg, cache, _ := newTestToggler(remote, signedIn())
	seedItem42(cache, "feed:public")

	if err := tg.ToggleLike(context.Background(), 42); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if err := tg.ToggleLike(context.Background(), 42); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	close(remote.block)
	tg.Wait()

	if n := remote.toggleCount(); n != 1 {
		t.Errorf("expected exactly 1 remote call, got %d", n)
	}

	// The double-click protection still applies: the state reflects
	// one toggle, not two.
	it, _ := cache.Find("feed", 42)
	if it.LikeCount != 4 {
		t.Errorf("expected LikeCount 4 after suppressed duplicate, got %d", it.LikeCount)
	}

	// After settling, a new toggle may proceed.
	if err := tg.ToggleLike(context.Background(), 42); err != nil {
		t.Errorf("toggle after settle: %v", err)
	}
	tg.Wait()
}

func TestTogglesOnDifferentTargetsAreIndependent(t *testing.T) {
	remote := &fakeRemote{block: make(chan struct{})}
	tg, cache, _ := newTestToggler(remote, signedIn())
	seedItem42(cache, "feed:public")

	if err := tg.ToggleLike(context.Background(), 41); err != nil {
		t.Fatalf("toggle 41: %v", err)
	}
	if err := tg.ToggleLike(context.Background(), 42); err != nil {
		t.Fatalf("toggle 42 blocked by unrelated in-flight toggle: %v", err)
	}

	close(remote.block)
	tg.Wait()

	if n := remote.toggleCount(); n != 2 {
		t.Errorf("expected 2 remote calls, got %d", n)
	}
}

func TestAuthGate(t *testing.T) {
	remote := &fakeRemote{}
	tg, cache, rec := newTestToggler(remote, &fakeSessions{})
	seedItem42(cache, "feed:public")
	before := cache.Pages("feed:public")

	err := tg.ToggleLike(context.Background(), 42)
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	tg.Wait()

	if remote.toggleCount() != 0 {
		t.Error("unauthenticated toggle reached the remote")
	}
	if got := cache.Pages("feed:public"); !reflect.DeepEqual(got, before) {
		t.Error("unauthenticated toggle wrote to the cache")
	}

	notes := rec.All()
	if len(notes) != 1 || notes[0].Title != "Sign in required" {
		t.Errorf("expected a sign-in prompt, got %+v", notes)
	}
}

func TestMultiPageConsistency(t *testing.T) {
	remote := &fakeRemote{block: make(chan struct{})}
	defer close(remote.block)

	tg, cache, _ := newTestToggler(remote, signedIn())
	// Item 42 cached under two keys sharing the prefix.
	seedItem42(cache, "feed:public", "feed:profile:u9")

	if err := tg.ToggleLike(context.Background(), 42); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}

	// Both cached copies show the same new value before the remote call
	// has settled.
	for _, key := range []string{"feed:public", "feed:profile:u9"} {
		it, ok := cache.Find(key, 42)
		if !ok {
			t.Fatalf("item missing under %q", key)
		}
		if !it.HasLiked || it.LikeCount != 4 {
			t.Errorf("%q: expected {HasLiked:true LikeCount:4}, got %+v", key, it)
		}
	}
}

func TestUncachedTargetStillMutatesRemote(t *testing.T) {
	remote := &fakeRemote{toggleErr: errors.New("boom")}
	tg, cache, rec := newTestToggler(remote, signedIn())

	if err := tg.ToggleLike(context.Background(), 999); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	tg.Wait()

	if remote.toggleCount() != 1 {
		t.Fatal("remote call skipped for uncached target")
	}
	// Absent from cache means an unliked default, so the request asks
	// to like.
	if !remote.toggleCalls[0].Liked {
		t.Error("expected Liked=true for uncached target")
	}
	if len(cache.Keys("feed")) != 0 {
		t.Error("uncached toggle created cache entries")
	}
	// The failure is still user-visible.
	if rec.Count() != 1 {
		t.Errorf("expected one error notification, got %d", rec.Count())
	}
}

func TestStaleRollbackDiscarded(t *testing.T) {
	remote := &fakeRemote{
		block:     make(chan struct{}),
		toggleErr: errors.New("late failure"),
	}
	tg, cache, _ := newTestToggler(remote, signedIn())
	seedItem42(cache, "feed:public")

	if err := tg.ToggleLike(context.Background(), 42); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}

	// A second controller sharing the cache (another view of the same
	// feed) writes a newer toggle before the first failure lands.
	cache.UpdateMatching("feed", func(it *query.Item) bool {
		if it.ID != 42 {
			return false
		}
		it.HasLiked = false
		it.LikeCount = 3
		return true
	})
	cache.BumpVersion(42)

	close(remote.block)
	tg.Wait()

	// The stale failure must not roll the newer state back to the
	// first toggle's snapshot.
	it, _ := cache.Find("feed", 42)
	if it.HasLiked || it.LikeCount != 3 {
		t.Errorf("stale rollback clobbered newer state: %+v", it)
	}
}

func TestSessionLookupFailure(t *testing.T) {
	remote := &fakeRemote{}
	tg, cache, rec := newTestToggler(remote, &fakeSessions{err: errors.New("auth backend down")})
	seedItem42(cache, "feed:public")

	if err := tg.ToggleLike(context.Background(), 42); err == nil {
		t.Fatal("expected error when session lookup fails")
	}
	if remote.toggleCount() != 0 {
		t.Error("toggle reached remote despite failed session lookup")
	}
	if rec.Count() != 1 {
		t.Errorf("expected one notification, got %d", rec.Count())
	}
}

func TestToggleLikeRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	set := metrics.NewSet(metrics.WithRegistry(reg))

	remote := &fakeRemote{toggleErr: errors.New("remote rejected")}
	cache := query.New()
	tg := New(cache, remote, signedIn(), toast.NewRecorder(), WithMetrics(set))
	seedItem42(cache, "feed:public")

	if err := tg.ToggleLike(context.Background(), 42); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	tg.Wait()

	expected := `
# HELP atelier_rollbacks_total Optimistic writes rolled back after a remote failure
# TYPE atelier_rollbacks_total counter
atelier_rollbacks_total 1
# HELP atelier_toggles_total Optimistic toggles by action and outcome
# TYPE atelier_toggles_total counter
atelier_toggles_total{action="like",outcome="error"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"atelier_rollbacks_total", "atelier_toggles_total"); err != nil {
		t.Errorf("unexpected collector state: %v", err)
	}
}

func TestWaitReturnsPromptly(t *testing.T) {
	tg, _, _ := newTestToggler(&fakeRemote{}, signedIn())

	done := make(chan struct{})
	go func() {
		tg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait hung with no in-flight mutations")
	}
}
