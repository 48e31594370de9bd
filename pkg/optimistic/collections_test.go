package optimistic

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/atelier-dev/atelier/pkg/platform"
	"github.com/atelier-dev/atelier/pkg/query"
	"github.com/atelier-dev/atelier/pkg/toast"
)

func seedCollectable(cache *query.Cache, collections ...string) {
	cache.SetPage("feed:public", 0, query.Page{
		{ID: 42, LikeCount: 3, Collections: collections},
	})
}

func TestSetCollectionsAdd(t *testing.T) {
	remote := &fakeRemote{addBlock: make(chan struct{})}
	tg, cache, rec := newTestToggler(remote, signedIn())
	seedCollectable(cache)

	err := tg.SetCollections(context.Background(), 42, []string{"faves", "inspo"}, true)
	if err != nil {
		t.Fatalf("SetCollections: %v", err)
	}

	// Membership is visible synchronously, before the remote calls
	// settle.
	it, _ := cache.Find("feed", 42)
	if !it.InCollection("faves") || !it.InCollection("inspo") {
		t.Fatalf("optimistic membership missing: %+v", it.Collections)
	}

	close(remote.addBlock)
	tg.Wait()

	it, _ = cache.Find("feed", 42)
	if !it.InCollection("faves") || !it.InCollection("inspo") {
		t.Errorf("membership lost after settle: %+v", it.Collections)
	}

	notes := rec.All()
	if len(notes) != 1 || notes[0].Level != toast.LevelSuccess {
		t.Errorf("expected one success notification, got %+v", notes)
	}
	if len(remote.addCalls) != 2 {
		t.Errorf("expected 2 remote adds, got %d", len(remote.addCalls))
	}
	for _, call := range remote.addCalls {
		if call.ItemID != 42 || call.UserID != "u1" {
			t.Errorf("unexpected add request: %+v", call)
		}
	}
}

func TestSetCollectionsPartialFailureRevertsOnlyFailed(t *testing.T) {
	remote := &fakeRemote{
		addErr: map[string]error{"broken": errors.New("storage down")},
	}
	tg, cache, rec := newTestToggler(remote, signedIn())
	seedCollectable(cache)

	if err := tg.SetCollections(context.Background(), 42, []string{"faves", "broken"}, true); err != nil {
		t.Fatalf("SetCollections: %v", err)
	}
	tg.Wait()

	// The failing collection is reverted; the succeeding one stands.
	it, _ := cache.Find("feed", 42)
	if !it.InCollection("faves") {
		t.Error("successful membership was reverted")
	}
	if it.InCollection("broken") {
		t.Error("failed membership was not reverted")
	}

	notes := rec.All()
	if len(notes) != 1 || notes[0].Level != toast.LevelError {
		t.Fatalf("expected one error notification, got %+v", notes)
	}
}

func TestSetCollectionsDuplicateAddConverges(t *testing.T) {
	remote := &fakeRemote{
		addErr: map[string]error{"faves": platform.ErrConflict},
	}
	tg, cache, rec := newTestToggler(remote, signedIn())
	seedCollectable(cache)

	if err := tg.SetCollections(context.Background(), 42, []string{"faves"}, true); err != nil {
		t.Fatalf("SetCollections: %v", err)
	}
	tg.Wait()

	// Already a member remotely: the optimistic state is already
	// correct, so the conflict counts as success.
	it, _ := cache.Find("feed", 42)
	if !it.InCollection("faves") {
		t.Error("duplicate add reverted converged membership")
	}
	notes := rec.All()
	if len(notes) != 1 || notes[0].Level != toast.LevelSuccess {
		t.Errorf("expected success notification for duplicate add, got %+v", notes)
	}
}

func TestSetCollectionsRemove(t *testing.T) {
	remote := &fakeRemote{}
	tg, cache, _ := newTestToggler(remote, signedIn())
	seedCollectable(cache, "faves", "inspo")

	if err := tg.SetCollections(context.Background(), 42, []string{"faves"}, false); err != nil {
		t.Fatalf("SetCollections: %v", err)
	}
	tg.Wait()

	it, _ := cache.Find("feed", 42)
	if it.InCollection("faves") {
		t.Error("membership not removed")
	}
	if !it.InCollection("inspo") {
		t.Error("unrelated membership removed")
	}
	if len(remote.removeCalls) != 1 || remote.removeCalls[0].CollectionID != "faves" {
		t.Errorf("unexpected remove calls: %+v", remote.removeCalls)
	}
}

func TestSetCollectionsRemoveFailureReverts(t *testing.T) {
	remote := &fakeRemote{removeErr: errors.New("storage down")}
	tg, cache, rec := newTestToggler(remote, signedIn())
	seedCollectable(cache, "faves")

	if err := tg.SetCollections(context.Background(), 42, []string{"faves"}, false); err != nil {
		t.Fatalf("SetCollections: %v", err)
	}
	tg.Wait()

	it, _ := cache.Find("feed", 42)
	if !it.InCollection("faves") {
		t.Error("failed remove not reverted")
	}
	notes := rec.All()
	if len(notes) != 1 || notes[0].Level != toast.LevelError {
		t.Errorf("expected one error notification, got %+v", notes)
	}
}

func TestSetCollectionsFailedReAddKeepsMembership(t *testing.T) {
	remote := &fakeRemote{
		addErr: map[string]error{"faves": errors.New("storage down")},
	}
	tg, cache, rec := newTestToggler(remote, signedIn())
	// The item is already a member: the optimistic add is a no-op.
	seedCollectable(cache, "faves")

	if err := tg.SetCollections(context.Background(), 42, []string{"faves"}, true); err != nil {
		t.Fatalf("SetCollections: %v", err)
	}
	tg.Wait()

	// The failure must not invert a membership this call never created.
	it, _ := cache.Find("feed", 42)
	if !it.InCollection("faves") {
		t.Errorf("pre-existing membership lost after failed re-add: %+v", it.Collections)
	}
	notes := rec.All()
	if len(notes) != 1 || notes[0].Level != toast.LevelError {
		t.Errorf("expected one error notification, got %+v", notes)
	}
}

func TestSetCollectionsFailedRemoveOfNonMember(t *testing.T) {
	remote := &fakeRemote{removeErr: errors.New("storage down")}
	tg, cache, _ := newTestToggler(remote, signedIn())
	// Not a member: the optimistic remove is a no-op.
	seedCollectable(cache)

	if err := tg.SetCollections(context.Background(), 42, []string{"faves"}, false); err != nil {
		t.Fatalf("SetCollections: %v", err)
	}
	tg.Wait()

	it, _ := cache.Find("feed", 42)
	if it.InCollection("faves") {
		t.Errorf("failed remove invented a membership: %+v", it.Collections)
	}
}

func TestSetCollectionsAuthGate(t *testing.T) {
	remote := &fakeRemote{}
	tg, cache, rec := newTestToggler(remote, &fakeSessions{})
	seedCollectable(cache)
	before := cache.Pages("feed:public")

	err := tg.SetCollections(context.Background(), 42, []string{"faves"}, true)
	if !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	tg.Wait()

	if len(remote.addCalls) != 0 {
		t.Error("unauthenticated mutation reached the remote")
	}
	if got := cache.Pages("feed:public"); !reflect.DeepEqual(got, before) {
		t.Error("unauthenticated mutation wrote to the cache")
	}
	notes := rec.All()
	if len(notes) != 1 || notes[0].Title != "Sign in required" {
		t.Errorf("expected a sign-in prompt, got %+v", notes)
	}
}

func TestSetCollectionsInFlightGuard(t *testing.T) {
	remote := &fakeRemote{addBlock: make(chan struct{})}
	tg, cache, _ := newTestToggler(remote, signedIn())
	seedCollectable(cache)

	if err := tg.SetCollections(context.Background(), 42, []string{"faves"}, true); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	// The same collection is in flight; a batch of only that collection
	// has nothing left to do.
	if err := tg.SetCollections(context.Background(), 42, []string{"faves"}, true); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	// A different collection for the same item is independent.
	if err := tg.SetCollections(context.Background(), 42, []string{"inspo"}, true); err != nil {
		t.Errorf("independent collection blocked: %v", err)
	}

	close(remote.addBlock)
	tg.Wait()

	remote.mu.Lock()
	calls := len(remote.addCalls)
	remote.mu.Unlock()
	if calls != 2 {
		t.Errorf("expected 2 remote adds (duplicate suppressed), got %d", calls)
	}
}

func TestSetCollectionsEmptyBatch(t *testing.T) {
	remote := &fakeRemote{}
	tg, _, rec := newTestToggler(remote, signedIn())

	if err := tg.SetCollections(context.Background(), 42, nil, true); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	tg.Wait()

	if len(remote.addCalls) != 0 || rec.Count() != 0 {
		t.Error("empty batch had side effects")
	}
}
