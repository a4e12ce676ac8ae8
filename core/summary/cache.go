// Package summary maintains an in-process cache of per-entity graph
// aggregates. The cache is recomputed in the background off the write path
// and swapped in atomically, so readers always see one complete, consistent
// snapshot and never a partially refreshed one.
package summary

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entigraph/entigraph/model"
	"github.com/google/uuid"
)

// SummarySource computes the aggregates a snapshot is built from
type SummarySource interface {
	SelectGraphSummaries() ([]*model.GraphSummary, error)
}

// Snapshot is one immutable, consistent view of the graph aggregates
type Snapshot struct {
	byEntity   map[uuid.UUID]*model.GraphSummary
	byDegree   []*model.GraphSummary
	ComputedAt time.Time
}

// Get returns the summary for an entity, or nil if the entity was unknown
// when the snapshot was computed
func (s *Snapshot) Get(entityID uuid.UUID) *model.GraphSummary {
	return s.byEntity[entityID]
}

// All returns every summary in the snapshot, most connected first
func (s *Snapshot) All() []*model.GraphSummary {
	return s.byDegree
}

// TopConnected returns the n most connected entities
func (s *Snapshot) TopConnected(n int) []*model.GraphSummary {
	if n > len(s.byDegree) {
		n = len(s.byDegree)
	}
	if n < 0 {
		n = 0
	}
	return s.byDegree[:n]
}

// Len returns the number of entities in the snapshot
func (s *Snapshot) Len() int {
	return len(s.byEntity)
}

// Cache holds the current snapshot and refreshes it in the background.
// A failed refresh keeps the last good snapshot; staleness bounded by the
// refresh interval is expected, not an error.
type Cache struct {
	source    SummarySource
	logger    *slog.Logger
	snapshot  atomic.Pointer[Snapshot]
	startOnce sync.Once
	stop      chan struct{}
}

// NewCache creates a summary cache over the given source. The cache starts
// empty; call Refresh or Start to populate it.
func NewCache(source SummarySource, logger *slog.Logger) *Cache {
	cache := &Cache{
		source: source,
		logger: logger,
		stop:   make(chan struct{}),
	}
	cache.snapshot.Store(&Snapshot{byEntity: map[uuid.UUID]*model.GraphSummary{}})
	return cache
}

// Snapshot returns the current snapshot. Never nil, possibly empty before
// the first refresh.
func (c *Cache) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Refresh recomputes all aggregates and swaps in the new snapshot. On error
// the previous snapshot stays in place.
func (c *Cache) Refresh() error {
	summaries, err := c.source.SelectGraphSummaries()
	if err != nil {
		c.logger.Error("Summary refresh failed, keeping previous snapshot", "error", err)
		return err
	}

	byEntity := make(map[uuid.UUID]*model.GraphSummary, len(summaries))
	byDegree := make([]*model.GraphSummary, 0, len(summaries))
	computedAt := time.Now()
	for _, summary := range summaries {
		byEntity[summary.EntityID] = summary
		byDegree = append(byDegree, summary)
	}

	sort.SliceStable(byDegree, func(i, j int) bool {
		di, dj := byDegree[i].TotalDegree(), byDegree[j].TotalDegree()
		if di != dj {
			return di > dj
		}
		return byDegree[i].CanonicalName < byDegree[j].CanonicalName
	})

	c.snapshot.Store(&Snapshot{
		byEntity:   byEntity,
		byDegree:   byDegree,
		ComputedAt: computedAt,
	})

	c.logger.Debug("Refreshed graph summary snapshot", "entities", len(byEntity))

	return nil
}

// Start refreshes once immediately and then on every interval tick until the
// context is cancelled or Close is called. Only the first call spawns the
// refresher; further calls are no-ops.
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	c.startOnce.Do(func() {
		if err := c.Refresh(); err != nil {
			c.logger.Warn("Initial summary refresh failed", "error", err)
		}

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-c.stop:
					return
				case <-ticker.C:
					// Errors keep the last good snapshot, nothing to do here.
					_ = c.Refresh()
				}
			}
		}()
	})
}

// Close stops the background refresh loop. Safe to call if Start was never
// called.
func (c *Cache) Close() {
	select {
	case <-c.stop:
		return
	default:
		close(c.stop)
	}
}
