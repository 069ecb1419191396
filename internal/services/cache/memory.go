package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/killallgit/testimony-api/pkg/clock"
)

const DefaultTTL = 30 * time.Minute

// MemoryCache is an in-process cache. When full, the least recently used
// entries are evicted first.
type MemoryCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front is most recently used
	maxBytes int64
	size     int64
	stats    Stats
	clock    clock.Clock

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type entry struct {
	key    string
	value  []byte
	expiry time.Time
}

func (e *entry) size() int64 {
	return int64(len(e.key) + len(e.value))
}

// NewMemoryCache creates a cache holding at most maxSizeMB megabytes.
// A non-positive size means unbounded. Call Stop to end the sweeper.
func NewMemoryCache(maxSizeMB int64, clk clock.Clock) *MemoryCache {
	mc := &MemoryCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxBytes: maxSizeMB * 1024 * 1024,
		clock:    clock.OrReal(clk),
		stopCh:   make(chan struct{}),
	}

	mc.wg.Add(1)
	go mc.sweepLoop()

	return mc
}

func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.items[key]
	if !ok {
		mc.stats.Misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if !mc.clock.Now().Before(e.expiry) {
		mc.remove(el)
		mc.stats.Misses++
		return nil, false
	}

	mc.order.MoveToFront(el)
	mc.stats.Hits++
	return e.value, true
}

func (mc *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	e := &entry{key: key, value: value, expiry: mc.clock.Now().Add(ttl)}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.maxBytes > 0 && e.size() > mc.maxBytes {
		return nil
	}
	if el, ok := mc.items[key]; ok {
		mc.remove(el)
	}
	mc.items[key] = mc.order.PushFront(e)
	mc.size += e.size()
	mc.stats.Sets++

	for mc.maxBytes > 0 && mc.size > mc.maxBytes {
		mc.remove(mc.order.Back())
		mc.stats.Evictions++
	}
	return nil
}

func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if el, ok := mc.items[key]; ok {
		mc.remove(el)
	}
	return nil
}

// Stats returns a snapshot of the counters
func (mc *MemoryCache) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	s := mc.stats
	s.Entries = len(mc.items)
	s.Bytes = mc.size
	s.MaxBytes = mc.maxBytes
	return s
}

// Stop ends the background sweeper
func (mc *MemoryCache) Stop() {
	select {
	case <-mc.stopCh:
		return
	default:
	}
	close(mc.stopCh)
	mc.wg.Wait()
}

// must hold mu
func (mc *MemoryCache) remove(el *list.Element) {
	e := mc.order.Remove(el).(*entry)
	delete(mc.items, e.key)
	mc.size -= e.size()
}

func (mc *MemoryCache) sweepLoop() {
	defer mc.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.removeExpired()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MemoryCache) removeExpired() int {
	now := mc.clock.Now()
	mc.mu.Lock()
	defer mc.mu.Unlock()

	removed := 0
	for el := mc.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expiry) {
			mc.remove(el)
			mc.stats.Evictions++
			removed++
		}
		el = prev
	}
	return removed
}
