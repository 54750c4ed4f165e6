// 包 cache：进程内有界 LRU 结果缓存
// 背景：热点坐标短周期内重复查询，命中缓存可完全跳过索引与瓦片 I/O；
// 键为调用方给出的精确经纬度对，不做吸附或量化，近似但不相同的坐标互不命中
// 约束：瓦片数据在进程生命周期内视为静态，无 TTL；淘汰只由容量上限触发；
// 未命中结果不入缓存，避免无覆盖区域的查询把有效条目挤出去
package cache

import (
	"container/list"
	"sync"
)

// Key：精确查询坐标
type Key struct {
	Lat float64
	Lon float64
}

type entry struct {
	k Key
	v float64
}

// LRU：固定容量的最近最少使用缓存
// 约束：Get 与 Set（含触发的淘汰）都在同一把互斥锁内完成，
// 并发写入不会破坏近因序或使条目数越过上限
type LRU struct {
	mu   sync.Mutex
	cap  int
	lst  *list.List
	dict map[Key]*list.Element
}

// NewLRU：构造缓存；capacity <= 0 视为禁用（所有操作空转）
func NewLRU(capacity int) *LRU {
	return &LRU{cap: capacity, lst: list.New(), dict: make(map[Key]*list.Element)}
}

// Get：查找并刷新近因
func (c *LRU) Get(k Key) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		c.lst.MoveToFront(e)
		return e.Value.(entry).v, true
	}
	return 0, false
}

// Set：写入并在超限时淘汰队尾（最久未使用）
func (c *LRU) Set(k Key, v float64) {
	if c.cap <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		e.Value = entry{k: k, v: v}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(entry{k: k, v: v})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		if back == nil {
			break
		}
		delete(c.dict, back.Value.(entry).k)
		c.lst.Remove(back)
	}
}

// Len：当前条目数
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}
