package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a fetched identity stays valid.
	DefaultTTL = time.Hour
	// DefaultCapacity bounds the cache; the least recently fetched entry
	// is evicted when a new id arrives at capacity.
	DefaultCapacity = 500
)

// Resolver maps opaque sender ids to display identities with a TTL cache.
// It is the only long-lived mutable state shared across an invocation:
// reads are concurrent, and concurrent misses for the same id are coalesced
// into a single backend lookup.
type Resolver struct {
	transport transport.IdentityTransport
	ttl       time.Duration
	capacity  int
	logger    *zap.Logger

	mu     sync.RWMutex
	cache  map[string]models.Identity
	flight singleflight.Group
}

func NewResolver(t transport.IdentityTransport, ttl time.Duration, capacity int, logger *zap.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Resolver{
		transport: t,
		ttl:       ttl,
		capacity:  capacity,
		logger:    logger,
		cache:     make(map[string]models.Identity),
	}
}

// Resolve returns the identity for id, from cache when fresh. When the
// backend lookup fails it returns a synthesized fallback identity that is
// never cached, so the next call retries the real lookup.
func (r *Resolver) Resolve(ctx context.Context, id string) models.Identity {
	ident, _ := r.ResolveOK(ctx, id)
	return ident
}

// ResolveOK is Resolve plus a flag reporting whether the identity came from
// the cache or backend (true) or is a synthesized fallback (false).
func (r *Resolver) ResolveOK(ctx context.Context, id string) (models.Identity, bool) {
	if ident, ok := r.cached(id); ok {
		return ident, true
	}

	v, err, _ := r.flight.Do(id, func() (interface{}, error) {
		// Another caller may have fetched while we waited on the flight.
		if ident, ok := r.cached(id); ok {
			return ident, nil
		}
		ident, err := r.transport.LookupOne(ctx, id)
		if err != nil {
			return nil, err
		}
		ident.ID = id
		ident.FetchedAt = time.Now()
		r.store(ident)
		return ident, nil
	})
	if err != nil {
		r.logger.Warn("Failed to look up identity",
			zap.Error(err),
			zap.String("id", id))
		return Fallback(id), false
	}
	return v.(models.Identity), true
}

// ResolveBatch resolves every id, partitioning into cache hits and misses.
// Misses go through one batched lookup when the transport supports it and
// sequential lookups otherwise. Failed ids get the uncached fallback.
func (r *Resolver) ResolveBatch(ctx context.Context, ids []string) map[string]models.Identity {
	result := make(map[string]models.Identity, len(ids))
	var misses []string

	for _, id := range ids {
		if _, seen := result[id]; seen {
			continue
		}
		if ident, ok := r.cached(id); ok {
			result[id] = ident
		} else {
			result[id] = models.Identity{} // placeholder marks dedup
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return result
	}

	// Batch misses bypass the singleflight group: coalescing per id would
	// break the batch apart into single lookups. A concurrent Resolve for
	// one of these ids can fetch it twice; the later store overwrites.
	fetched, err := r.transport.LookupMany(ctx, misses)
	if err != nil {
		if errors.Is(err, transport.ErrBatchUnsupported) {
			for _, id := range misses {
				result[id] = r.Resolve(ctx, id)
			}
			return result
		}
		r.logger.Warn("Failed to batch look up identities",
			zap.Error(err),
			zap.Int("count", len(misses)))
		for _, id := range misses {
			result[id] = Fallback(id)
		}
		return result
	}

	now := time.Now()
	for _, id := range misses {
		ident, ok := fetched[id]
		if !ok {
			result[id] = Fallback(id)
			continue
		}
		ident.ID = id
		ident.FetchedAt = now
		r.store(ident)
		result[id] = ident
	}
	return result
}

// Invalidate clears all cached entries. Used at session reset boundaries
// only, never mid-analysis.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.cache)
	r.cache = make(map[string]models.Identity)
	r.logger.Info("Identity cache cleared", zap.Int("entries", size))
}

// Size reports the number of cached entries, expired or not.
func (r *Resolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) cached(id string) (models.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ident, ok := r.cache[id]
	if !ok {
		return models.Identity{}, false
	}
	if time.Since(ident.FetchedAt) >= r.ttl {
		// Expired entries are left for the next store to overwrite; they
		// are never returned without re-validation.
		return models.Identity{}, false
	}
	return ident, true
}

func (r *Resolver) store(ident models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cache[ident.ID]; !exists && len(r.cache) >= r.capacity {
		r.evictOldest()
	}
	r.cache[ident.ID] = ident
}

// evictOldest drops the entry with the oldest fetch time. Eviction is by
// fetch time, not access time; cache hits do not refresh an entry.
// Caller holds the write lock.
func (r *Resolver) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, ident := range r.cache {
		if oldestID == "" || ident.FetchedAt.Before(oldest) {
			oldestID = id
			oldest = ident.FetchedAt
		}
	}
	if oldestID != "" {
		delete(r.cache, oldestID)
	}
}

// Fallback synthesizes a deterministic identity for an id whose lookup
// failed: User_ plus the first 8 characters of the id, no avatar.
func Fallback(id string) models.Identity {
	prefix := id
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	if prefix == "" {
		prefix = "unknown"
	}
	return models.Identity{
		ID:   id,
		Name: "User_" + prefix,
	}
}
