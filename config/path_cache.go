package config

import (
	"strings"
	"sync"
)

// pathCache 缓存配置路径解析结果
type pathCache struct {
	cache sync.Map // path -> []string
}

// segments 获取路径片段，: 和 . 都是分隔符
func (c *pathCache) segments(path string) []string {
	if v, ok := c.cache.Load(path); ok {
		return v.([]string)
	}

	parts := strings.Split(strings.ReplaceAll(path, ":", "."), ".")
	c.cache.Store(path, parts)
	return parts
}

var globalPathCache = &pathCache{}
