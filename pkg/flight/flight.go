// Package flight deduplicates expensive generation work. Concurrent
// requests for the same key share one in-flight call, and successful
// results are kept so repeat requests are free.
package flight

import "sync"

type call[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// Cache memoizes fn results per key with single-flight semantics.
// The zero value is not usable; call New.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	done    map[K]V
	pending map[K]*call[V]
}

func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		done:    make(map[K]V),
		pending: make(map[K]*call[V]),
	}
}

// Do returns the cached value for key, or runs fn exactly once across
// all concurrent callers. Failed calls are not cached.
func (c *Cache[K, V]) Do(key K, fn func() (V, error)) (V, error) {
	c.mu.Lock()
	if v, ok := c.done[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	if inflight, ok := c.pending[key]; ok {
		c.mu.Unlock()
		inflight.wg.Wait()
		return inflight.val, inflight.err
	}

	cl := &call[V]{}
	cl.wg.Add(1)
	c.pending[key] = cl
	c.mu.Unlock()

	cl.val, cl.err = fn()
	c.mu.Lock()
	delete(c.pending, key)
	if cl.err == nil {
		c.done[key] = cl.val
	}
	c.mu.Unlock()
	cl.wg.Done()

	return cl.val, cl.err
}

// Forget drops the cached value so the next Do recomputes.
func (c *Cache[K, V]) Forget(key K) {
	c.mu.Lock()
	delete(c.done, key)
	c.mu.Unlock()
}
