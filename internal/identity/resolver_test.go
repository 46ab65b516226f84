package identity

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/transport"
)

type fakeIdentityTransport struct {
	mu         sync.Mutex
	identities map[string]models.Identity
	oneCalls   int32
	manyCalls  int32
	failOne    bool
	failMany   error
	delay      time.Duration
}

func (f *fakeIdentityTransport) LookupOne(_ context.Context, id string) (models.Identity, error) {
	atomic.AddInt32(&f.oneCalls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOne {
		return models.Identity{}, fmt.Errorf("lookup failed: %s", id)
	}
	ident, ok := f.identities[id]
	if !ok {
		return models.Identity{}, fmt.Errorf("identity not found: %s", id)
	}
	return ident, nil
}

func (f *fakeIdentityTransport) LookupMany(_ context.Context, ids []string) (map[string]models.Identity, error) {
	atomic.AddInt32(&f.manyCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMany != nil {
		return nil, f.failMany
	}
	result := make(map[string]models.Identity)
	for _, id := range ids {
		if ident, ok := f.identities[id]; ok {
			result[id] = ident
		}
	}
	return result, nil
}

func TestResolveCachesWithinTTL(t *testing.T) {
	ft := &fakeIdentityTransport{identities: map[string]models.Identity{
		"ou_abc": {Name: "Alice"},
	}}
	r := NewResolver(ft, time.Hour, 10, zap.NewNop())

	for i := 0; i < 3; i++ {
		ident := r.Resolve(context.Background(), "ou_abc")
		assert.Equal(t, "Alice", ident.Name)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&ft.oneCalls))
}

func TestResolveRefetchesAfterTTL(t *testing.T) {
	ft := &fakeIdentityTransport{identities: map[string]models.Identity{
		"ou_abc": {Name: "Alice"},
	}}
	r := NewResolver(ft, 10*time.Millisecond, 10, zap.NewNop())

	r.Resolve(context.Background(), "ou_abc")
	time.Sleep(20 * time.Millisecond)
	r.Resolve(context.Background(), "ou_abc")

	assert.Equal(t, int32(2), atomic.LoadInt32(&ft.oneCalls))
}

func TestFallbackIsNotCached(t *testing.T) {
	ft := &fakeIdentityTransport{failOne: true}
	r := NewResolver(ft, time.Hour, 10, zap.NewNop())

	ident, ok := r.ResolveOK(context.Background(), "ou_999999xyz")
	assert.False(t, ok)
	assert.Equal(t, "User_ou_99999", ident.Name)
	assert.Empty(t, ident.AvatarURL)
	assert.Equal(t, 0, r.Size())

	// Backend recovers; the next call must retry instead of serving the
	// fallback from cache.
	ft.mu.Lock()
	ft.failOne = false
	ft.identities = map[string]models.Identity{"ou_999999xyz": {Name: "Carol"}}
	ft.mu.Unlock()

	ident, ok = r.ResolveOK(context.Background(), "ou_999999xyz")
	assert.True(t, ok)
	assert.Equal(t, "Carol", ident.Name)
}

func TestFallbackName(t *testing.T) {
	assert.Equal(t, "User_ou_12345", Fallback("ou_123456789").Name)
	assert.Equal(t, "User_ab", Fallback("ab").Name)
	assert.Equal(t, "User_unknown", Fallback("").Name)
}

func TestResolveBatchPartitionsHitsAndMisses(t *testing.T) {
	ft := &fakeIdentityTransport{identities: map[string]models.Identity{
		"a": {Name: "Alice"},
		"b": {Name: "Bob"},
		"c": {Name: "Carol"},
	}}
	r := NewResolver(ft, time.Hour, 10, zap.NewNop())

	// Warm up one entry, then batch over all three plus a duplicate.
	r.Resolve(context.Background(), "a")
	require.Equal(t, int32(1), atomic.LoadInt32(&ft.oneCalls))

	result := r.ResolveBatch(context.Background(), []string{"a", "b", "c", "b"})

	assert.Len(t, result, 3)
	assert.Equal(t, "Alice", result["a"].Name)
	assert.Equal(t, "Bob", result["b"].Name)
	assert.Equal(t, "Carol", result["c"].Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ft.oneCalls), "cached id must not hit the backend again")
	assert.Equal(t, int32(1), atomic.LoadInt32(&ft.manyCalls))
}

func TestResolveBatchFallsBackToSequential(t *testing.T) {
	ft := &fakeIdentityTransport{
		identities: map[string]models.Identity{
			"a": {Name: "Alice"},
			"b": {Name: "Bob"},
		},
		failMany: transport.ErrBatchUnsupported,
	}
	r := NewResolver(ft, time.Hour, 10, zap.NewNop())

	result := r.ResolveBatch(context.Background(), []string{"a", "b"})

	assert.Equal(t, "Alice", result["a"].Name)
	assert.Equal(t, "Bob", result["b"].Name)
	assert.Equal(t, int32(2), atomic.LoadInt32(&ft.oneCalls))
}

func TestResolveBatchMissingIDGetsFallback(t *testing.T) {
	ft := &fakeIdentityTransport{identities: map[string]models.Identity{
		"a": {Name: "Alice"},
	}}
	r := NewResolver(ft, time.Hour, 10, zap.NewNop())

	result := r.ResolveBatch(context.Background(), []string{"a", "ou_gone1234"})

	assert.Equal(t, "Alice", result["a"].Name)
	assert.Equal(t, "User_ou_gone1", result["ou_gone1234"].Name)
	assert.Equal(t, 1, r.Size(), "fallback must not be cached")
}

func TestEvictionAtCapacity(t *testing.T) {
	ft := &fakeIdentityTransport{identities: map[string]models.Identity{
		"a": {Name: "Alice"},
		"b": {Name: "Bob"},
		"c": {Name: "Carol"},
	}}
	r := NewResolver(ft, time.Hour, 2, zap.NewNop())

	r.Resolve(context.Background(), "a")
	time.Sleep(time.Millisecond)
	r.Resolve(context.Background(), "b")
	time.Sleep(time.Millisecond)
	r.Resolve(context.Background(), "c")

	assert.Equal(t, 2, r.Size())

	// "a" was the oldest fetch; resolving it again must hit the backend.
	before := atomic.LoadInt32(&ft.oneCalls)
	r.Resolve(context.Background(), "a")
	assert.Equal(t, before+1, atomic.LoadInt32(&ft.oneCalls))
}

func TestConcurrentMissesCoalesce(t *testing.T) {
	ft := &fakeIdentityTransport{
		identities: map[string]models.Identity{"a": {Name: "Alice"}},
		delay:      20 * time.Millisecond,
	}
	r := NewResolver(ft, time.Hour, 10, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ident := r.Resolve(context.Background(), "a")
			assert.Equal(t, "Alice", ident.Name)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&ft.oneCalls))
}

func TestInvalidateClearsCache(t *testing.T) {
	ft := &fakeIdentityTransport{identities: map[string]models.Identity{
		"a": {Name: "Alice"},
	}}
	r := NewResolver(ft, time.Hour, 10, zap.NewNop())

	r.Resolve(context.Background(), "a")
	require.Equal(t, 1, r.Size())

	r.Invalidate()
	assert.Equal(t, 0, r.Size())
}
