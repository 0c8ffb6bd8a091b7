package api

import (
	"container/list"
	"sync"
	"time"
)

// 文档注释：本地 LRU 缓存（量化坐标为键）
// 背景：热点坐标在短周期内重复查询；未配置 Redis 时用进程内缓存降低解析链路开销，TTL 可调。
// 约束：仅用于 /snap；键由调用方构造，包含点束代次与容差，配置或索引变化后旧键自然失效。
type lru struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
}

type lruItem struct {
	k   string
	v   snapResult
	exp time.Time
}

func newLRU(capacity int, ttl time.Duration) *lru {
	return &lru{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element)}
}

func (c *lru) Get(k string) (snapResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		it := e.Value.(lruItem)
		if time.Now().Before(it.exp) {
			c.lst.MoveToFront(e)
			return it.v, true
		}
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	return snapResult{}, false
}

func (c *lru) Set(k string, v snapResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		e.Value = lruItem{k: k, v: v, exp: time.Now().Add(c.ttl)}
		c.lst.MoveToFront(e)
		return
	}
	e := c.lst.PushFront(lruItem{k: k, v: v, exp: time.Now().Add(c.ttl)})
	c.dict[k] = e
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		if back != nil {
			it := back.Value.(lruItem)
			delete(c.dict, it.k)
			c.lst.Remove(back)
		}
	}
}
