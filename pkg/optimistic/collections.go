package optimistic

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atelier-dev/atelier/pkg/platform"
	"github.com/atelier-dev/atelier/pkg/query"
	"github.com/atelier-dev/atelier/pkg/toast"
)

// SetCollections adds the item to (or removes it from) every selected
// collection. Membership is updated optimistically in the cache, then
// each collection is mutated remotely as an independent best-effort
// call: failures revert that collection's membership and are reported
// in one summary notification, successes stand. The multi-select flow
// is deliberately not transactional; the platform offers no
// cross-collection transaction and partial success is the useful
// outcome for the user.
//
// An add that turns out to be a duplicate converges to the optimistic
// state and counts as success.
func (t *Toggler) SetCollections(ctx context.Context, itemID int64, collectionIDs []string, member bool) error {
	session, err := t.gate(ctx, "Sign in to manage collections")
	if err != nil {
		return err
	}
	if len(collectionIDs) == 0 {
		return nil
	}

	// Per-collection in-flight guard: collections already being
	// mutated for this item are dropped from this batch.
	acquired := make([]string, 0, len(collectionIDs))
	for _, id := range collectionIDs {
		if t.acquire(flightKey{itemID: itemID, action: "collection:" + id}) {
			acquired = append(acquired, id)
		}
	}
	if len(acquired) == 0 {
		return ErrInFlight
	}

	t.cache.CancelRefetch(t.prefix)

	// Apply per collection and remember which ones the cache pass
	// actually changed. A re-add of an existing membership (or a remove
	// of a non-member) is a no-op in the cache; reverting it on failure
	// would strip state that predates this call.
	changed := make(map[string]bool, len(acquired))
	for _, id := range acquired {
		changed[id] = t.applyMembership(itemID, id, member) > 0
	}

	userID := session.User.ID

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			for _, id := range acquired {
				t.release(flightKey{itemID: itemID, action: "collection:" + id})
			}
		}()

		spanCtx, span := t.tracer.Start(context.WithoutCancel(ctx), "optimistic.set_collections",
			trace.WithAttributes(
				attribute.Int64("item.id", itemID),
				attribute.Int("collections.count", len(acquired)),
				attribute.Bool("membership.next", member),
			))
		defer span.End()

		var failed []string
		for _, id := range acquired {
			if err := t.mutateMembership(spanCtx, id, itemID, userID, member); err != nil {
				t.logger.Error("collection mutation failed",
					"collection_id", id,
					"item_id", itemID,
					"error", err)
				// Revert just this collection's membership, and only if
				// the optimistic pass changed it.
				if changed[id] {
					t.applyMembership(itemID, id, !member)
				}
				failed = append(failed, id)
			}
		}

		if len(failed) == 0 {
			span.SetStatus(codes.Ok, "")
			t.metrics.ToggleOutcome("collection", "ok")
			if member {
				toast.Success(t.notifier, fmt.Sprintf("Added to %d collection(s)", len(acquired)))
			} else {
				toast.Success(t.notifier, fmt.Sprintf("Removed from %d collection(s)", len(acquired)))
			}
			t.metrics.NotificationInc(string(toast.LevelSuccess))
			return
		}

		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d collections failed", len(failed), len(acquired)))
		t.metrics.ToggleOutcome("collection", "error")
		t.metrics.RollbackInc()
		toast.Error(t.notifier, fmt.Sprintf("Failed to update %d of %d collections", len(failed), len(acquired)))
		t.metrics.NotificationInc(string(toast.LevelError))
	}()

	return nil
}

// mutateMembership issues one remote membership change. Duplicate adds
// converge to the desired state and are treated as success.
func (t *Toggler) mutateMembership(ctx context.Context, collectionID string, itemID int64, userID string, member bool) error {
	if member {
		res, err := t.remote.AddToCollection(ctx, platform.CollectionAddRequest{
			CollectionID: collectionID,
			ItemID:       itemID,
			UserID:       userID,
		})
		if err != nil && (res.Duplicate || errors.Is(err, platform.ErrConflict)) {
			t.logger.Debug("item already in collection",
				"collection_id", collectionID,
				"item_id", itemID)
			return nil
		}
		return err
	}

	_, err := t.remote.RemoveFromCollection(ctx, platform.CollectionRemoveRequest{
		CollectionID: collectionID,
		ItemID:       itemID,
		UserID:       userID,
	})
	return err
}

// applyMembership updates the cached membership for the item across
// all matching keys in one synchronous pass. Returns how many cached
// copies changed; zero means the cache already held the desired state.
func (t *Toggler) applyMembership(itemID int64, collectionID string, member bool) int {
	return t.cache.UpdateMatching(t.prefix, func(it *query.Item) bool {
		if it.ID != itemID {
			return false
		}
		if member {
			if it.InCollection(collectionID) {
				return false
			}
			it.Collections = append(it.Collections, collectionID)
			return true
		}
		if !it.InCollection(collectionID) {
			return false
		}
		out := it.Collections[:0]
		for _, c := range it.Collections {
			if c != collectionID {
				out = append(out, c)
			}
		}
		it.Collections = out
		return true
	})
}
