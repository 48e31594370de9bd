package optimistic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/atelier-dev/atelier/pkg/metrics"
	"github.com/atelier-dev/atelier/pkg/platform"
	"github.com/atelier-dev/atelier/pkg/query"
	"github.com/atelier-dev/atelier/pkg/toast"
)

// DefaultKeyPrefix is the query-key prefix the controller operates on.
const DefaultKeyPrefix = "feed"

const tracerName = "atelier/optimistic"

// flightKey identifies one logical pending mutation: the target item
// plus the action ("like", or "collection:<id>").
type flightKey struct {
	itemID int64
	action string
}

// Toggler is the optimistic mutation controller. It is safe for
// concurrent use; all cache writes happen inside single critical
// sections of the injected cache.
type Toggler struct {
	cache    *query.Cache
	remote   platform.Mutator
	sessions platform.SessionSource
	notifier toast.Notifier

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Set
	prefix  string

	mu       sync.Mutex
	inflight map[flightKey]struct{}
	wg       sync.WaitGroup
}

// Option configures a Toggler.
type Option func(*Toggler)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Toggler) {
		t.logger = l
	}
}

// WithTracer sets the tracer for toggle spans.
func WithTracer(tr trace.Tracer) Option {
	return func(t *Toggler) {
		t.tracer = tr
	}
}

// WithMetrics sets the metrics set. Default: none.
func WithMetrics(m *metrics.Set) Option {
	return func(t *Toggler) {
		t.metrics = m
	}
}

// WithKeyPrefix sets the query-key prefix the controller snapshots,
// updates and cancels refetches for. Default: DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(t *Toggler) {
		t.prefix = prefix
	}
}

// New creates a Toggler over the given cache and platform boundary.
func New(cache *query.Cache, remote platform.Mutator, sessions platform.SessionSource, notifier toast.Notifier, opts ...Option) *Toggler {
	t := &Toggler{
		cache:    cache,
		remote:   remote,
		sessions: sessions,
		notifier: notifier,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		prefix:   DefaultKeyPrefix,
		inflight: make(map[flightKey]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ToggleLike flips the like state of the target item. The cache
// reflects the optimistic value by the time this returns; the remote
// mutation settles in the background.
//
// Returns ErrAuthRequired for unauthenticated callers and ErrInFlight
// when a like toggle for the same item is already pending. Remote
// failures are not returned here: they roll the cache back and surface
// as an error notification.
func (t *Toggler) ToggleLike(ctx context.Context, itemID int64) error {
	session, err := t.gate(ctx, "Sign in to like designs")
	if err != nil {
		return err
	}

	fk := flightKey{itemID: itemID, action: "like"}
	if !t.acquire(fk) {
		return ErrInFlight
	}

	// Cancel before reading: a stale refetch landing between the read
	// and the write would clobber the optimistic value.
	t.cache.CancelRefetch(t.prefix)

	current, found := t.cache.Find(t.prefix, itemID)
	liked := !current.HasLiked

	var snap *query.Snapshot
	var version uint64
	if found {
		snap = t.cache.Snapshot(t.prefix)
		t.cache.UpdateMatching(t.prefix, func(it *query.Item) bool {
			if it.ID != itemID {
				return false
			}
			it.HasLiked = liked
			if liked {
				it.LikeCount++
			} else if it.LikeCount > 0 {
				it.LikeCount--
			}
			return true
		})
		version = t.cache.BumpVersion(itemID)
	}
	// Not found in any cached page: nothing to update optimistically,
	// but the platform is authoritative for existence, so the remote
	// call still goes out.

	req := platform.ToggleLikeRequest{ItemID: itemID, UserID: session.User.ID, Liked: liked}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.release(fk)

		spanCtx, span := t.tracer.Start(context.WithoutCancel(ctx), "optimistic.toggle_like",
			trace.WithAttributes(
				attribute.Int64("item.id", itemID),
				attribute.Bool("like.next", liked),
			))
		defer span.End()

		start := time.Now()
		_, err := t.remote.ToggleLike(spanCtx, req)
		t.metrics.ObserveToggleDuration("like", time.Since(start))

		if err == nil {
			t.metrics.ToggleOutcome("like", "ok")
			span.SetStatus(codes.Ok, "")
			return
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.metrics.ToggleOutcome("like", "error")
		t.logger.Error("like toggle failed",
			"item_id", itemID,
			"error", err)

		t.rollback(snap, itemID, version)
		toast.Error(t.notifier, "Failed to update like. Please try again.")
		t.metrics.NotificationInc(string(toast.LevelError))
	}()

	return nil
}

// gate resolves the session and aborts unauthenticated toggles before
// any cache write or remote call.
func (t *Toggler) gate(ctx context.Context, prompt string) (*platform.Session, error) {
	session, err := t.sessions.GetSession(ctx)
	if err != nil {
		t.logger.Error("session lookup failed", "error", err)
		toast.Error(t.notifier, "Could not verify your session")
		return nil, err
	}
	if session == nil {
		toast.WithTitle(t.notifier, toast.LevelError, "Sign in required", prompt)
		t.metrics.NotificationInc(string(toast.LevelError))
		return nil, ErrAuthRequired
	}
	return session, nil
}

// rollback restores the snapshot unless a newer toggle superseded it.
func (t *Toggler) rollback(snap *query.Snapshot, itemID int64, version uint64) {
	if snap == nil {
		return
	}
	if t.cache.Version(itemID) != version {
		// A newer toggle owns the item's state now; restoring the old
		// snapshot would clobber it.
		t.logger.Debug("stale rollback discarded", "item_id", itemID)
		return
	}
	t.cache.RestoreSnapshot(snap)
	t.metrics.RollbackInc()
}

func (t *Toggler) acquire(fk flightKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, pending := t.inflight[fk]; pending {
		t.metrics.InflightDroppedInc()
		return false
	}
	t.inflight[fk] = struct{}{}
	return true
}

func (t *Toggler) release(fk flightKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, fk)
}

// Wait blocks until every background mutation has settled. Intended
// for shutdown and tests.
func (t *Toggler) Wait() {
	t.wg.Wait()
}
