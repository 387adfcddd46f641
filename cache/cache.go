// Package cache 提供泛型 LRU+TTL 缓存
//
// 读模型查询的热点缓存。容量满时驱逐最久未使用条目；TTL 基于
// 写入时间。写路径在更新存储后调用 Delete 保持一致。
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config 缓存配置
type Config struct {
	// Name 缓存名称（日志与统计用）
	Name string

	// MaxSize 最大条目数，0 表示不限
	MaxSize int

	// TTL 过期时间（自写入起算），0 表示永不过期
	TTL time.Duration
}

// Stats 缓存统计
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expires   int64
	Size      int
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	writtenAt time.Time
	element   *list.Element
}

// Cache 泛型 LRU+TTL 缓存，并发安全
type Cache[K comparable, V any] struct {
	config Config

	mu      sync.Mutex
	items   map[K]*entry[K, V]
	lruList *list.List
	stats   Stats
}

// New 创建缓存实例
func New[K comparable, V any](config Config) *Cache[K, V] {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	return &Cache[K, V]{
		config:  config,
		items:   make(map[K]*entry[K, V]),
		lruList: list.New(),
	}
}

// Get 获取缓存值；过期条目按未命中处理并被移除。
// Get 会调整 LRU 位置与统计，因此持互斥锁而非读锁。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if c.expired(e) {
		c.remove(e)
		c.stats.Expires++
		c.stats.Misses++
		return zero, false
	}
	c.lruList.MoveToFront(e.element)
	c.stats.Hits++
	return e.value, true
}

// Set 写入缓存，超出容量时驱逐最久未使用条目
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		e.writtenAt = time.Now()
		c.lruList.MoveToFront(e.element)
		return
	}

	e := &entry[K, V]{key: key, value: value, writtenAt: time.Now()}
	e.element = c.lruList.PushFront(e)
	c.items[key] = e

	if c.config.MaxSize > 0 && len(c.items) > c.config.MaxSize {
		oldest := c.lruList.Back()
		if oldest != nil {
			c.remove(oldest.Value.(*entry[K, V]))
			c.stats.Evictions++
		}
	}
}

// Delete 删除缓存条目
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.remove(e)
	}
}

// Clear 清空缓存
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*entry[K, V])
	c.lruList.Init()
}

// Len 当前条目数
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats 返回统计快照
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.items)
	return s
}

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return c.config.TTL > 0 && time.Since(e.writtenAt) > c.config.TTL
}

func (c *Cache[K, V]) remove(e *entry[K, V]) {
	c.lruList.Remove(e.element)
	delete(c.items, e.key)
}
