package translation

import (
	"crypto/md5"
	"fmt"
	"sync"
)

// MemoryCache 内存缓存实现
type MemoryCache struct {
	data  map[string]string
	mutex sync.Mutex
	stats CacheStats
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]string),
	}
}

// Get 获取缓存
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	value, exists := c.data[key]
	if !exists {
		c.stats.Misses++
		return "", false
	}

	c.stats.Hits++
	return value, true
}

// Set 设置缓存
func (c *MemoryCache) Set(key string, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = value
	c.stats.Size = int64(len(c.data))
	return nil
}

// Stats 获取缓存统计信息
func (c *MemoryCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.stats
}

// cacheKey 由目标语言和文本生成缓存键
func cacheKey(target, text string) string {
	return fmt.Sprintf("%s:%x", target, md5.Sum([]byte(text)))
}
