// Package bufpool provides size-classed byte slice pools for frame I/O.
//
// Each class is a sync.Pool of fixed-capacity slices. Get picks the smallest
// class that fits; requests above the largest class are allocated directly
// and never pooled.
//
//	buf := pool.Get(n)
//	defer pool.Put(buf)
package bufpool

import (
	"sort"
	"sync"
)

// Default size classes: typical command frames, then the default frame limit.
const (
	DefaultSmallSize = 1 << 10
	DefaultLargeSize = 64 << 10
)

type class struct {
	size int
	pool sync.Pool
}

// Pool is a set of sync.Pools keyed by capacity.
type Pool struct {
	classes []*class
}

// NewPool creates a pool with the given size classes. With no sizes the
// defaults are used. Non-positive and duplicate sizes are ignored.
func NewPool(sizes ...int) *Pool {
	if len(sizes) == 0 {
		sizes = []int{DefaultSmallSize, DefaultLargeSize}
	}
	sorted := append([]int(nil), sizes...)
	sort.Ints(sorted)

	p := &Pool{}
	for _, s := range sorted {
		if s <= 0 || (len(p.classes) > 0 && p.classes[len(p.classes)-1].size == s) {
			continue
		}
		c := &class{size: s}
		c.pool.New = func() any {
			b := make([]byte, c.size)
			return &b
		}
		p.classes = append(p.classes, c)
	}
	return p
}

// Get returns a slice of length size. Call Put when done.
func (p *Pool) Get(size int) []byte {
	for _, c := range p.classes {
		if size <= c.size {
			b := *(c.pool.Get().(*[]byte))
			return b[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to its class. Slices not obtained from Get are dropped.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for _, c := range p.classes {
		if cap(buf) == c.size {
			full := buf[:c.size]
			c.pool.Put(&full)
			return
		}
	}
}

// MaxPooled returns the largest pooled capacity, or 0 for an empty pool.
func (p *Pool) MaxPooled() int {
	if len(p.classes) == 0 {
		return 0
	}
	return p.classes[len(p.classes)-1].size
}

var defaultPool = NewPool()

// Get returns a buffer from the package default pool.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put returns a buffer to the package default pool.
func Put(buf []byte) { defaultPool.Put(buf) }
