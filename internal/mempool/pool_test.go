package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"small size gets minimum", 1, 1024},
		{"exactly 1024", 1024, 1024},
		{"just over 1024", 1025, 2048},
		{"exact multiple", 2048, 2048},
		{"large size", 10000, 10240},
		{"zero size", 0, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestPool_GetLengthAndCapacity(t *testing.T) {
	var p Pool[float32]
	buf := p.Get(1500)
	assert.Len(t, buf, 1500)
	assert.Equal(t, 2048, cap(buf))

	assert.Empty(t, p.Get(-3))
}

func TestPool_GetZeroedClearsReusedBuffer(t *testing.T) {
	var p Pool[bool]
	buf := p.Get(10)
	for i := range buf {
		buf[i] = true
	}
	p.Put(buf)

	again := p.GetZeroed(10)
	for _, v := range again {
		assert.False(t, v)
	}
}

func TestPool_PutDropsForeignSlices(t *testing.T) {
	var p Pool[int]
	p.Put(nil)
	p.Put(make([]int, 10, 1500))
	buf := p.Get(10)
	assert.Equal(t, 1024, cap(buf))
}

func TestPool_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				buf := Float32.Get(n*100 + j)
				buf[0] = float32(j)
				Float32.Put(buf)
			}
		}(i + 1)
	}
	wg.Wait()
}
