package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSet(t *testing.T) {
	c := NewLRU(10)
	_, ok := c.Get(Key{Lat: 51.5, Lon: -0.1})
	assert.False(t, ok)

	c.Set(Key{Lat: 51.5, Lon: -0.1}, 42.5)
	v, ok := c.Get(Key{Lat: 51.5, Lon: -0.1})
	assert.True(t, ok)
	assert.Equal(t, 42.5, v)

	// 精确键：近似但不相同的坐标不命中
	_, ok = c.Get(Key{Lat: 51.5000001, Lon: -0.1})
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(2)
	c.Set(Key{Lat: 1}, 1)
	c.Set(Key{Lat: 2}, 2)
	c.Set(Key{Lat: 3}, 3)

	_, ok := c.Get(Key{Lat: 1})
	assert.False(t, ok, "oldest entry must be evicted")
	_, ok = c.Get(Key{Lat: 2})
	assert.True(t, ok)
	_, ok = c.Get(Key{Lat: 3})
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestGetRefreshesRecency(t *testing.T) {
	c := NewLRU(2)
	c.Set(Key{Lat: 1}, 1)
	c.Set(Key{Lat: 2}, 2)

	// 访问 1 后写入 3，被淘汰的应是 2
	_, _ = c.Get(Key{Lat: 1})
	c.Set(Key{Lat: 3}, 3)

	_, ok := c.Get(Key{Lat: 1})
	assert.True(t, ok)
	_, ok = c.Get(Key{Lat: 2})
	assert.False(t, ok)
}

func TestUpdateExistingKey(t *testing.T) {
	c := NewLRU(2)
	c.Set(Key{Lat: 1}, 1)
	c.Set(Key{Lat: 1}, 10)
	v, ok := c.Get(Key{Lat: 1})
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
	assert.Equal(t, 1, c.Len())
}

func TestZeroCapacityDisabled(t *testing.T) {
	c := NewLRU(0)
	c.Set(Key{Lat: 1}, 1)
	_, ok := c.Get(Key{Lat: 1})
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := NewLRU(64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := Key{Lat: float64(i % 100), Lon: float64(g)}
				c.Set(k, float64(i))
				_, _ = c.Get(k)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
