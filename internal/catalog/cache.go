package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/HerbHall/skillpath/internal/metrics"
	pkgcatalog "github.com/HerbHall/skillpath/pkg/catalog"
)

// Fetcher retrieves the full content catalog from its source.
type Fetcher interface {
	FetchCatalog(ctx context.Context) ([]pkgcatalog.Entry, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]pkgcatalog.Entry, error)

// FetchCatalog calls f.
func (f FetcherFunc) FetchCatalog(ctx context.Context) ([]pkgcatalog.Entry, error) {
	return f(ctx)
}

// slot holds one session's snapshot once it has been fetched.
type slot struct {
	snap *pkgcatalog.Snapshot
}

// Cache holds one catalog snapshot per session. The first request for a
// session triggers a fetch; concurrent requests join the in-flight fetch and
// later requests reuse the stored snapshot. A stored snapshot is never
// replaced for the life of the session.
type Cache struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	slots map[string]*slot
}

// NewCache creates a Cache backed by fetcher. Fetches are bounded by timeout
// when it is positive.
func NewCache(fetcher Fetcher, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Cache {
	return &Cache{
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		slots:   make(map[string]*slot),
	}
}

// Peek returns the session's snapshot without fetching, or nil.
func (c *Cache) Peek(sessionID string) *pkgcatalog.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.slots[sessionID]; ok {
		return s.snap
	}
	return nil
}

// Snapshot returns the session's catalog, fetching it if this is the first
// request. The fetch is shared by every concurrent caller for the session and
// is not cancelled when one caller gives up. A failed fetch is not cached.
func (c *Cache) Snapshot(ctx context.Context, sessionID string) (*pkgcatalog.Snapshot, error) {
	if sessionID == "" {
		return nil, errors.New("catalog: empty session id")
	}

	s, err := c.slotFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	snap := s.snap
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.group.DoChan(sessionID, func() (any, error) {
		c.mu.RLock()
		existing := s.snap
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		return c.fetch(context.WithoutCancel(ctx), sessionID, s)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*pkgcatalog.Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget drops the session's snapshot. An in-flight fetch still completes for
// its waiters but is not retained.
func (c *Cache) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.slots, sessionID)
	c.mu.Unlock()
	c.group.Forget(sessionID)
}

// Sessions returns the number of sessions with a slot.
func (c *Cache) Sessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

// slotFor returns the session's slot, creating it only while ctx is live.
// A session's context is cancelled before Forget runs, so a closed session
// never gets a fresh slot.
func (c *Cache) slotFor(ctx context.Context, sessionID string) (*slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[sessionID]; ok {
		return s, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &slot{}
	c.slots[sessionID] = s
	return s, nil
}

func (c *Cache) fetch(ctx context.Context, sessionID string, s *slot) (*pkgcatalog.Snapshot, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.now()
	entries, err := c.fetcher.FetchCatalog(ctx)
	done := c.now()
	elapsed := done.Sub(start)
	if err != nil {
		c.metrics.CatalogFetch(metrics.OutcomeError, elapsed)
		c.logger.Warn("catalog fetch failed",
			zap.String("session_id", sessionID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}

	snap := pkgcatalog.NewSnapshot(entries, done)
	c.mu.Lock()
	s.snap = snap
	c.mu.Unlock()

	c.metrics.CatalogFetch(metrics.OutcomeOK, elapsed)
	c.logger.Info("catalog fetched",
		zap.String("session_id", sessionID),
		zap.Int("entries", snap.Len()),
		zap.Duration("elapsed", elapsed),
	)
	return snap, nil
}
