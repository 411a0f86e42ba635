// Package mempool recycles scratch slices used on the detection hot path.
package mempool

import "sync"

const classStep = 1024

// Pool hands out slices grouped in size classes of classStep elements. The
// zero value is ready to use and safe for concurrent use.
type Pool[T any] struct {
	classes sync.Map // size class -> *sync.Pool
}

// Shared pools for detector input tensors and component masks.
var (
	Float32 Pool[float32]
	Bool    Pool[bool]
)

// sizeClass rounds n up to the next multiple of classStep.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

func (p *Pool[T]) class(cls int) *sync.Pool {
	sp, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return sp.(*sync.Pool)
}

// Get returns a slice of length n. Its contents are undefined.
func (p *Pool[T]) Get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	buf, ok := p.class(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

// GetZeroed is Get with every element reset to the zero value.
func (p *Pool[T]) GetZeroed(n int) []T {
	buf := p.Get(n)
	clear(buf)
	return buf
}

// Put returns buf for reuse. Slices not obtained from Get are dropped.
func (p *Pool[T]) Put(buf []T) {
	c := cap(buf)
	if c == 0 || c != sizeClass(c) {
		return
	}
	p.class(c).Put(buf[:c]) //nolint:staticcheck // SA6002: slice header allocation is acceptable here
}
