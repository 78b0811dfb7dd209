package simplestorage

import (
	"sync"
	"time"
	"unsafe"
	"weak"
)

// CacheFactory creates the content cell for a new handle.
type CacheFactory func() ContentCache

// DefaultRetention is how long the default cell keeps content strongly
// reachable after it was last stored or read.
const DefaultRetention = 30 * time.Second

// weakCache keeps content strongly for a retention period after the last
// Store or Load, and after that only through a weak pointer to the bytes
// themselves. Content a caller still holds stays available; once nothing
// refers to it the collector may reclaim it, Load reports a miss and the
// handle fetches again.
type weakCache struct {
	mu        sync.Mutex
	retention time.Duration
	strong    []byte
	until     time.Time
	timer     *time.Timer
	ptr       weak.Pointer[byte]
	n         int
	set       bool
}

// NewWeakCache returns the default reclaimable cell with DefaultRetention.
func NewWeakCache() ContentCache {
	return NewWeakCacheWithRetention(DefaultRetention)
}

// NewWeakCacheWithRetention returns a reclaimable cell that keeps content
// strongly for retention. Zero keeps it only through the weak pointer.
func NewWeakCacheWithRetention(retention time.Duration) ContentCache {
	return &weakCache{retention: retention}
}

// WeakCacheFactory returns a CacheFactory for WithCacheFactory.
func WeakCacheFactory(retention time.Duration) CacheFactory {
	return func() ContentCache {
		return NewWeakCacheWithRetention(retention)
	}
}

func (c *weakCache) Load() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return nil, false
	}
	if c.n == 0 {
		return []byte{}, true
	}
	if c.strong != nil {
		c.hold(c.strong)
		return c.strong, true
	}
	p := c.ptr.Value()
	if p == nil {
		c.set = false
		return nil, false
	}
	data := unsafe.Slice(p, c.n)
	c.hold(data)
	return data, true
}

func (c *weakCache) Store(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = true
	c.n = len(data)
	c.ptr = weak.Pointer[byte]{}
	c.strong = nil
	if len(data) == 0 {
		return
	}
	c.ptr = weak.Make(&data[0])
	c.hold(data)
}

// hold keeps data strongly reachable for the retention period. c.mu is held.
func (c *weakCache) hold(data []byte) {
	if c.retention <= 0 {
		return
	}
	c.strong = data
	c.until = time.Now().Add(c.retention)
	if c.timer == nil {
		c.timer = time.AfterFunc(c.retention, c.release)
	} else {
		c.timer.Reset(c.retention)
	}
}

// release drops the strong reference once the retention period has passed.
func (c *weakCache) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strong == nil {
		return
	}
	if wait := time.Until(c.until); wait > 0 {
		c.timer.Reset(wait)
		return
	}
	c.strong = nil
}

func (c *weakCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.strong = nil
	c.ptr = weak.Pointer[byte]{}
	c.n = 0
	c.set = false
}

// strongCache keeps content until Clear is called.
type strongCache struct {
	mu   sync.Mutex
	data []byte
	set  bool
}

// NewStrongCache returns a cell that is only emptied explicitly.
func NewStrongCache() ContentCache {
	return &strongCache{}
}

func (c *strongCache) Load() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data, c.set
}

func (c *strongCache) Store(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.set = true
}

func (c *strongCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.set = false
}
