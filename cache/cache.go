// Package cache provides the bounded, injectable stores backing the MX
// resolution cache and the exchanger reachability cache. Entries are
// written once per key and reused until TTL expiry or LRU eviction, so
// independent verifier instances can share or isolate cached state as the
// caller chooses.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

const defaultCleanerInterval = time.Minute

// Store is the capability the verification stages cache through.
// Implementations must be safe for concurrent use. A Store never
// surfaces errors: a failed backend read is a miss, a failed write is
// dropped, so caching can only speed verification up, never break it.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, v V)
	Len() int
	Close() error
}

// Memory is an in-process Store with an LRU size bound and per-entry TTL.
// A background cleaner sweeps expired entries so keys that are never read
// again do not pin memory until eviction.
type Memory[V any] struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	ll         *list.List
	entries    map[string]*list.Element

	closed           uint32
	closeCleanerChan chan struct{}
}

type memEntry[V any] struct {
	key     string
	value   V
	expires time.Time
}

// NewMemory creates a memory store holding at most maxEntries values,
// each valid for ttl. maxEntries <= 0 selects 4096; ttl <= 0 selects
// five minutes.
func NewMemory[V any](maxEntries int, ttl time.Duration) *Memory[V] {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	m := &Memory[V]{
		maxEntries:       maxEntries,
		ttl:              ttl,
		ll:               list.New(),
		entries:          make(map[string]*list.Element),
		closeCleanerChan: make(chan struct{}),
	}
	go m.startCleaner(defaultCleanerInterval)
	return m
}

func (m *Memory[V]) isClosed() bool {
	return atomic.LoadUint32(&m.closed) != 0
}

// Get returns the value for key if present and unexpired.
func (m *Memory[V]) Get(key string) (V, bool) {
	var zero V
	if m.isClosed() {
		return zero, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*memEntry[V])
	if time.Now().After(e.expires) {
		m.removeElement(el)
		return zero, false
	}
	m.ll.MoveToBack(el)
	return e.value, true
}

// Set stores the value for key, evicting the least recently used entry
// when the store is full. An existing entry is overwritten and its TTL
// restarted.
func (m *Memory[V]) Set(key string, v V) {
	if m.isClosed() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expires := time.Now().Add(m.ttl)
	if el, ok := m.entries[key]; ok {
		e := el.Value.(*memEntry[V])
		e.value = v
		e.expires = expires
		m.ll.MoveToBack(el)
		return
	}

	for m.ll.Len() >= m.maxEntries {
		m.removeElement(m.ll.Front())
	}
	m.entries[key] = m.ll.PushBack(&memEntry[V]{key: key, value: v, expires: expires})
}

// Len returns the number of live entries, expired ones included until the
// cleaner or a Get sweeps them.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// Close stops the background cleaner. Safe to call multiple times.
func (m *Memory[V]) Close() error {
	if atomic.CompareAndSwapUint32(&m.closed, 0, 1) {
		close(m.closeCleanerChan)
	}
	return nil
}

// removeElement drops an entry. Caller holds m.mu.
func (m *Memory[V]) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*memEntry[V])
	delete(m.entries, e.key)
	m.ll.Remove(el)
}

func (m *Memory[V]) startCleaner(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.closeCleanerChan:
			return
		case <-ticker.C:
			m.clean()
		}
	}
}

func (m *Memory[V]) clean() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var next *list.Element
	for el := m.ll.Front(); el != nil; el = next {
		next = el.Next()
		if now.After(el.Value.(*memEntry[V]).expires) {
			m.removeElement(el)
		}
	}
}
