package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"courtsync/internal/modules/catalog/application/port"
	"courtsync/internal/modules/catalog/domain"
	"courtsync/internal/shared/metrics"
)

// Record is any entity the cache can key by id.
type Record interface {
	RecordID() string
}

// FetchOptions controls a cache read. Force bypasses the warm cache and
// always issues an upstream fetch (the result replaces the cached value).
type FetchOptions struct {
	Force bool
}

// EntityCache serves entity reads for one entity type with minimal upstream
// traffic. Reads hit the warm cache when possible; concurrent fetches for the
// same key are coalesced onto a single upstream call, and all waiters receive
// the same result. The guard for a key is installed before the fetch starts
// and cleared in the completion path whatever the outcome, so a failed fetch
// never wedges the key.
type EntityCache[T Record] struct {
	entity  string
	fetcher port.Fetcher[T]
	now     func() time.Time

	mu            sync.Mutex
	generation    uint64
	collection    []T
	collectionKey string
	hasCollection bool
	byID          map[string]T
	lastFetchedAt time.Time
	loading       bool
	lastErr       string

	inflightCollection map[string]*inflight[[]T]
	inflightByID       map[string]*inflight[T]
}

type inflight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

func NewEntityCache[T Record](entity string, fetcher port.Fetcher[T]) *EntityCache[T] {
	return &EntityCache[T]{
		entity:             strings.TrimSpace(entity),
		fetcher:            fetcher,
		now:                time.Now,
		byID:               make(map[string]T),
		inflightCollection: make(map[string]*inflight[[]T]),
		inflightByID:       make(map[string]*inflight[T]),
	}
}

// Collection returns the scoped entity collection, fetching it upstream only
// when the cache is cold for the scope or opts.Force is set. Callers racing
// on the same scope share one upstream request.
func (c *EntityCache[T]) Collection(ctx context.Context, scope domain.Scope, opts FetchOptions) ([]T, error) {
	key := scope.Key()

	c.mu.Lock()
	if !opts.Force && c.hasCollection && c.collectionKey == key {
		records := cloneRecords(c.collection)
		c.mu.Unlock()
		metrics.CacheHits.WithLabelValues(c.entity).Inc()
		return records, nil
	}
	if call, ok := c.inflightCollection[key]; ok {
		c.mu.Unlock()
		metrics.CacheCoalesced.WithLabelValues(c.entity).Inc()
		return awaitCall(ctx, call)
	}
	call := &inflight[[]T]{done: make(chan struct{})}
	c.inflightCollection[key] = call
	c.loading = true
	gen := c.generation
	c.mu.Unlock()

	metrics.CacheMisses.WithLabelValues(c.entity).Inc()
	records, err := c.fetcher.List(ctx, scope)

	c.mu.Lock()
	if c.generation == gen {
		delete(c.inflightCollection, key)
		c.loading = c.anyInflightLocked()
		if err != nil {
			c.lastErr = err.Error()
		} else {
			c.lastErr = ""
			c.collection = cloneRecords(records)
			c.collectionKey = key
			c.hasCollection = true
			c.lastFetchedAt = c.now()
			for _, rec := range records {
				c.byID[rec.RecordID()] = rec
			}
		}
	}
	c.mu.Unlock()

	call.val = cloneRecords(records)
	call.err = err
	close(call.done)

	if err != nil {
		slog.Warn("entity collection fetch failed", slog.String("entity", c.entity), slog.String("scope", key), slog.Any("error", err))
		return nil, err
	}
	return cloneRecords(records), nil
}

// EnsureByID returns the entity for id, fetching it upstream only when the
// id is not cached or opts.Force is set. Concurrent calls for the same id
// share one upstream request; the per-id guard is independent from the
// collection guard, since a detail fetch and a collection fetch may
// legitimately overlap.
func (c *EntityCache[T]) EnsureByID(ctx context.Context, id string, opts FetchOptions) (T, error) {
	var zero T
	id = strings.TrimSpace(id)
	if id == "" {
		return zero, port.ErrNotFound
	}

	c.mu.Lock()
	if !opts.Force {
		if rec, ok := c.byID[id]; ok {
			c.mu.Unlock()
			metrics.CacheHits.WithLabelValues(c.entity).Inc()
			return rec, nil
		}
	}
	if call, ok := c.inflightByID[id]; ok {
		c.mu.Unlock()
		metrics.CacheCoalesced.WithLabelValues(c.entity).Inc()
		return awaitCall(ctx, call)
	}
	call := &inflight[T]{done: make(chan struct{})}
	c.inflightByID[id] = call
	c.loading = true
	gen := c.generation
	c.mu.Unlock()

	metrics.CacheMisses.WithLabelValues(c.entity).Inc()
	rec, err := c.fetcher.Get(ctx, id)

	c.mu.Lock()
	if c.generation == gen {
		delete(c.inflightByID, id)
		c.loading = c.anyInflightLocked()
		if err != nil {
			c.lastErr = err.Error()
		} else {
			c.lastErr = ""
			c.byID[id] = rec
			c.replaceInCollectionLocked(rec)
		}
	}
	c.mu.Unlock()

	call.val = rec
	call.err = err
	close(call.done)

	if err != nil {
		slog.Warn("entity detail fetch failed", slog.String("entity", c.entity), slog.String("id", id), slog.Any("error", err))
		return zero, err
	}
	return rec, nil
}

// Create performs the upstream write and splices the created entity into the
// cached collection and the id index. On write failure the cache is left
// untouched and the error propagates to the caller.
func (c *EntityCache[T]) Create(ctx context.Context, scope domain.Scope, payload T) (T, error) {
	var zero T
	created, err := c.fetcher.Create(ctx, scope, payload)
	if err != nil {
		c.setError(err.Error())
		return zero, err
	}

	c.mu.Lock()
	c.lastErr = ""
	c.byID[created.RecordID()] = created
	if c.hasCollection && c.collectionKey == scope.Key() {
		c.collection = append(c.collection, created)
	}
	c.mu.Unlock()
	return created, nil
}

// Update performs the upstream write and replaces the entity in place.
func (c *EntityCache[T]) Update(ctx context.Context, scope domain.Scope, id string, payload T) (T, error) {
	var zero T
	updated, err := c.fetcher.Update(ctx, scope, id, payload)
	if err != nil {
		c.setError(err.Error())
		return zero, err
	}

	c.mu.Lock()
	c.lastErr = ""
	c.byID[updated.RecordID()] = updated
	c.replaceInCollectionLocked(updated)
	c.mu.Unlock()
	return updated, nil
}

// Delete performs the upstream delete and removes the entity from both the
// collection and the id index.
func (c *EntityCache[T]) Delete(ctx context.Context, scope domain.Scope, id string) error {
	if err := c.fetcher.Delete(ctx, scope, id); err != nil {
		c.setError(err.Error())
		return err
	}

	c.mu.Lock()
	c.lastErr = ""
	delete(c.byID, id)
	for i, rec := range c.collection {
		if rec.RecordID() == id {
			c.collection = append(c.collection[:i], c.collection[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// Invalidate clears the collection, the id index, the fetch timestamp and
// both inflight maps in one step. Fetches that were in flight when the cache
// was invalidated still resolve their waiters, but their results are not
// written back, and new calls never join them.
func (c *EntityCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.collection = nil
	c.collectionKey = ""
	c.hasCollection = false
	c.byID = make(map[string]T)
	c.lastFetchedAt = time.Time{}
	c.loading = false
	c.lastErr = ""
	c.inflightCollection = make(map[string]*inflight[[]T])
	c.inflightByID = make(map[string]*inflight[T])
}

// SetCollection replaces the cached collection for the scope and reindexes
// byID from it, without an upstream round-trip.
func (c *EntityCache[T]) SetCollection(scope domain.Scope, records []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collection = cloneRecords(records)
	c.collectionKey = scope.Key()
	c.hasCollection = true
	c.lastFetchedAt = c.now()
	for _, rec := range records {
		c.byID[rec.RecordID()] = rec
	}
}

// SetError overrides the store-level error string; an empty string clears it.
func (c *EntityCache[T]) SetError(message string) {
	c.setError(message)
}

// SetLoading overrides the loading flag.
func (c *EntityCache[T]) SetLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
}

// Get returns the cached entity for id without touching the network.
func (c *EntityCache[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.byID[id]
	return rec, ok
}

// Records returns a copy of the cached collection.
func (c *EntityCache[T]) Records() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneRecords(c.collection)
}

func (c *EntityCache[T]) LastFetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetchedAt
}

func (c *EntityCache[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *EntityCache[T]) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *EntityCache[T]) setError(message string) {
	c.mu.Lock()
	c.lastErr = strings.TrimSpace(message)
	c.mu.Unlock()
}

func (c *EntityCache[T]) anyInflightLocked() bool {
	return len(c.inflightCollection) > 0 || len(c.inflightByID) > 0
}

func (c *EntityCache[T]) replaceInCollectionLocked(rec T) {
	id := rec.RecordID()
	for i, existing := range c.collection {
		if existing.RecordID() == id {
			c.collection[i] = rec
			return
		}
	}
}

func awaitCall[V any](ctx context.Context, call *inflight[V]) (V, error) {
	select {
	case <-call.done:
		return call.val, call.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func cloneRecords[T any](records []T) []T {
	if records == nil {
		return nil
	}
	return append([]T(nil), records...)
}
