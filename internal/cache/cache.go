package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/dgnsrekt/soundvis/internal/waveform"
)

// DefaultCapacity is the default cache size in bytes.
const DefaultCapacity = 32 << 20

// ErrItemTooLarge is returned when a buffer exceeds the cache capacity.
var ErrItemTooLarge = errors.New("item too large for cache")

// Stats describes cache usage.
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	ItemCount int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

type entry struct {
	key  string
	buf  *waveform.Buffer
	size int64
}

// BufferCache is an LRU cache of generated buffers bounded by their sample
// memory. Buffers are shared, never copied, so callers must not modify
// them. It is safe for concurrent use.
type BufferCache struct {
	mu sync.Mutex

	capacity int64
	size     int64
	items    map[string]*list.Element
	eviction *list.List
	stats    Stats
}

// New creates a cache holding up to capacity bytes of samples.
func New(capacity int64) *BufferCache {
	return &BufferCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

// Key identifies the buffer p generates. Files are read from disk each time
// and have no key.
func Key(p waveform.Params) (string, bool) {
	switch p.Sound {
	case waveform.SoundTone:
		return fmt.Sprintf("tone/%g/%g/%d", p.Frequency, p.Duration, p.SampleRate), true
	case waveform.SoundDesign:
		return fmt.Sprintf("design/%g/%d", p.Duration, p.SampleRate), true
	default:
		return "", false
	}
}

func bufferSize(b *waveform.Buffer) int64 {
	return int64(b.Len()) * 4
}

// Get returns the buffer stored under key and marks it most recently used.
func (c *BufferCache) Get(key string) (*waveform.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.eviction.MoveToFront(elem)
	c.stats.Hits++
	return elem.Value.(*entry).buf, true
}

// Put stores buf under key, evicting least recently used buffers to make
// room.
func (c *BufferCache) Put(key string, buf *waveform.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := bufferSize(buf)
	if size > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	for c.size+size > c.capacity && c.eviction.Len() > 0 {
		c.removeElement(c.eviction.Back())
		c.stats.Evictions++
	}

	c.items[key] = c.eviction.PushFront(&entry{key: key, buf: buf, size: size})
	c.size += size
	return nil
}

// GetOrGenerate returns the cached buffer for p, generating and storing it
// on a miss. Sounds without a key are always generated.
func (c *BufferCache) GetOrGenerate(p waveform.Params) (*waveform.Buffer, error) {
	key, ok := Key(p)
	if !ok {
		return waveform.Generate(p) //nolint:wrapcheck
	}
	if buf, ok := c.Get(key); ok {
		return buf, nil
	}
	buf, err := waveform.Generate(p)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	// Oversized buffers are played without being kept.
	_ = c.Put(key, buf)
	return buf, nil
}

// Stats returns cache statistics.
func (c *BufferCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	stats.ItemCount = int64(len(c.items))
	return stats
}

func (c *BufferCache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	c.eviction.Remove(elem)
	delete(c.items, e.key)
	c.size -= e.size
}
