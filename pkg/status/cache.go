// Package status maintains the shared account-status snapshot (linked?,
// session still valid?) consumed by several CLI surfaces. Concurrent
// refreshes are collapsed into a single request, and local events such as a
// just-finished link can mark the snapshot optimistically ahead of the next
// server round trip.
package status

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalrav/shipgrid/pkg/api"
	sgerrors "github.com/kalrav/shipgrid/pkg/errors"
	"github.com/kalrav/shipgrid/pkg/logging"
)

const statusKey = "status"

// Fetcher is the subset of the service client the cache needs.
type Fetcher interface {
	LinkStatus(ctx context.Context) (*api.LinkStatus, error)
	ValidateSession(ctx context.Context) (*api.SessionValidation, error)
}

// Snapshot is one view of the shared status. Nil pointers mean "unknown":
// the field has not been fetched or marked since construction or the last
// Reset.
type Snapshot struct {
	Linked         *bool
	SessionValid   *bool
	SupplierID     string
	LinkedAt       *time.Time
	ExpiredMessage string

	// Overridden is set while the snapshot carries an optimistic local mark
	// that the server has not yet confirmed. The next successful fetch
	// clears it.
	Overridden bool
}

// Cache deduplicates status fetches and holds the shared snapshot. Safe for
// concurrent use. Construct one per process and inject it; there is no
// package-level instance.
type Cache struct {
	api    Fetcher
	logger *logging.Logger

	group singleflight.Group

	mu sync.Mutex
	// generation invalidates in-flight fetches: a refresh only applies its
	// result if no Reset happened while it was on the wire.
	generation uint64
	snap       Snapshot
}

// NewCache builds a cache over the given client. A nil logger disables
// logging.
func NewCache(client Fetcher, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cache{api: client, logger: logger}
}

// FetchStatus refreshes the snapshot from the server. Concurrent callers
// share one in-flight request and all observe the same result. When the
// account is linked, a session-validity check is chained; if that check
// itself fails the session is assumed valid, so an outage of the validation
// endpoint never shows a false "session expired".
func (c *Cache) FetchStatus(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	v, err, shared := c.group.Do(statusKey, func() (any, error) {
		return c.refresh(ctx, gen)
	})
	if shared {
		metricFetchesShared.Inc()
	}
	if err != nil {
		metricFetchFailures.Inc()
		return c.Current(), err
	}
	return v.(Snapshot), nil
}

func (c *Cache) refresh(ctx context.Context, gen uint64) (Snapshot, error) {
	metricFetches.Inc()

	ls, err := c.api.LinkStatus(ctx)
	if err != nil {
		return Snapshot{}, sgerrors.Wrap(err, sgerrors.ErrCodeStatusFetch, "failed to fetch account status")
	}

	var sessionValid *bool
	if ls.Linked {
		if sv, verr := c.api.ValidateSession(ctx); verr != nil {
			// Fail open: the primary status succeeded, so don't let a
			// validation-endpoint hiccup look like an expired session.
			c.logger.Warn(logging.CategoryStatus, "validate_failed", "session validation failed, assuming valid", map[string]any{
				"error": verr.Error(),
			})
			sessionValid = boolPtr(true)
		} else {
			sessionValid = boolPtr(sv.Valid)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// Reset raced this fetch; discard the result.
		return c.snap, nil
	}
	c.snap = Snapshot{
		Linked:       boolPtr(ls.Linked),
		SessionValid: sessionValid,
		SupplierID:   ls.SupplierID,
		LinkedAt:     ls.LinkedAt,
	}
	return c.snap, nil
}

// Current returns the snapshot as-is, without fetching.
func (c *Cache) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// MarkLinked records a successful link ahead of server confirmation.
func (c *Cache) MarkLinked(supplierID string) {
	metricMarks.WithLabelValues("linked").Inc()
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = Snapshot{
		Linked:       boolPtr(true),
		SessionValid: boolPtr(true),
		SupplierID:   supplierID,
		LinkedAt:     &now,
		Overridden:   true,
	}
}

// MarkUnlinked records an unlink ahead of server confirmation.
func (c *Cache) MarkUnlinked() {
	metricMarks.WithLabelValues("unlinked").Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = Snapshot{
		Linked:     boolPtr(false),
		Overridden: true,
	}
}

// MarkSessionExpired records that the stored session was rejected, keeping
// the linked fields intact so the user is told to re-link rather than link.
func (c *Cache) MarkSessionExpired(message string) {
	metricMarks.WithLabelValues("session_expired").Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.SessionValid = boolPtr(false)
	c.snap.ExpiredMessage = message
	c.snap.Overridden = true
}

// Reset restores the all-unknown state and forgets any in-flight fetch, so
// the next caller starts a fresh request and a late-arriving result from
// before the reset is discarded.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.generation++
	c.snap = Snapshot{}
	c.mu.Unlock()
	c.group.Forget(statusKey)
}

func boolPtr(b bool) *bool { return &b }
