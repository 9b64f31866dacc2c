// Package modelcache holds the upstream vendor's model metadata (currently
// just each model's max input token count), refreshed on a TTL and swapped
// in atomically through an atomic.Pointer so request-handling goroutines
// never block on a refresh in flight.
package modelcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiro-gateway/kiro-gateway/internal/logger"
)

// ModelInfo is one upstream model's metadata.
type ModelInfo struct {
	ModelID        string
	MaxInputTokens int
}

// Fetcher retrieves the current model list from the upstream vendor's
// ListAvailableModels endpoint.
type Fetcher interface {
	ListAvailableModels(ctx context.Context) ([]ModelInfo, error)
}

type snapshot struct {
	models     map[string]ModelInfo
	fetchedAt  time.Time
}

// Cache is the shared, lock-free-to-read model metadata table.
type Cache struct {
	ttl            time.Duration
	defaultMaxIn   int
	fetcher        Fetcher
	log            *logger.Logger
	current        atomic.Pointer[snapshot]
	refreshingOnce sync.Mutex // guards the lazy inline-refresh path only

	// onUpdate, when set, is called with the new model count after every
	// successful refresh. Used to feed the gateway's metrics registry
	// without this package importing it directly.
	onUpdate func(size int)
}

// OnUpdate registers a callback invoked with the new model count after
// every successful refresh (inline or background).
func (c *Cache) OnUpdate(fn func(size int)) {
	c.onUpdate = fn
}

// New constructs a Cache. No network call happens until the first query or
// the background loop's first tick.
func New(ttl time.Duration, defaultMaxInputTokens int, fetcher Fetcher, log *logger.Logger) *Cache {
	c := &Cache{ttl: ttl, defaultMaxIn: defaultMaxInputTokens, fetcher: fetcher, log: log}
	c.current.Store(&snapshot{models: map[string]ModelInfo{}})
	return c
}

// GetMaxInputTokens returns the cached max-input-tokens for modelID, falling
// back to the configured default if the model is unknown. Triggers a
// synchronous inline refresh first if the cache is empty or stale.
func (c *Cache) GetMaxInputTokens(ctx context.Context, modelID string) int {
	snap := c.current.Load()
	if c.isStale(snap) {
		snap = c.refreshInline(ctx)
	}
	if info, ok := snap.models[modelID]; ok && info.MaxInputTokens > 0 {
		return info.MaxInputTokens
	}
	return c.defaultMaxIn
}

// Size reports how many models the cache currently holds, without
// triggering a refresh. Used by the health endpoint; the metrics gauge is
// fed through OnUpdate instead.
func (c *Cache) Size() int {
	return len(c.current.Load().models)
}

func (c *Cache) isStale(snap *snapshot) bool {
	if len(snap.models) == 0 {
		return true
	}
	return time.Since(snap.fetchedAt) > c.ttl
}

// refreshInline performs a synchronous refresh, but only one caller actually
// hits the network at a time; concurrent callers that lose the race simply
// wait for the mutex and then re-read whatever the winner stored.
func (c *Cache) refreshInline(ctx context.Context) *snapshot {
	c.refreshingOnce.Lock()
	defer c.refreshingOnce.Unlock()

	// Another goroutine may have already refreshed while we waited for the
	// lock; re-check before doing a redundant fetch.
	if snap := c.current.Load(); !c.isStale(snap) {
		return snap
	}

	models, err := c.fetcher.ListAvailableModels(ctx)
	if err != nil {
		if c.log != nil {
			c.log.LogError(ctx, err, "model cache: inline refresh failed, serving stale/empty data")
		}
		return c.current.Load()
	}
	return c.store(models)
}

func (c *Cache) store(models []ModelInfo) *snapshot {
	m := make(map[string]ModelInfo, len(models))
	for _, info := range models {
		m[info.ModelID] = info
	}
	snap := &snapshot{models: m, fetchedAt: time.Now()}
	c.current.Store(snap)
	if c.onUpdate != nil {
		c.onUpdate(len(m))
	}
	return snap
}

// Run starts the background refresh loop, ticking at TTL/2, until ctx is
// cancelled. Intended to be launched as its own goroutine from main.
func (c *Cache) Run(ctx context.Context) {
	interval := c.ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			models, err := c.fetcher.ListAvailableModels(ctx)
			if err != nil {
				if c.log != nil {
					c.log.LogError(ctx, err, "model cache: background refresh failed, keeping previous data")
				}
				continue
			}
			c.store(models)
		}
	}
}
