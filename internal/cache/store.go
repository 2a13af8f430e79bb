// 文件路径: internal/cache/store.go
// 模块说明: 基于 go-cache 的固定窗口计数器，供限流中间件使用。
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Counters 定义按 key 计数、按窗口过期的计数器接口。
type Counters interface {
	// Hit 在当前窗口内为 key 计数一次，返回累计次数与窗口重置时间。
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	Reset(ctx context.Context, key string)
	Namespace(prefix string) Counters
}

// Options 配置内存缓存行为。
type Options struct {
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Prefix          string
}

// NewCounters 创建基于 go-cache 的计数器实现，并支持命名空间。
func NewCounters(opts Options) Counters {
	window := opts.DefaultWindow
	if window <= 0 {
		window = time.Minute
	}
	cleanup := opts.CleanupInterval
	if cleanup <= 0 {
		cleanup = window
	}

	return &goCacheCounters{
		backend:       gocache.New(window, cleanup),
		defaultWindow: window,
		prefix:        normalizePrefix(opts.Prefix),
	}
}

type goCacheCounters struct {
	backend       *gocache.Cache
	defaultWindow time.Duration
	prefix        string
}

type windowEntry struct {
	resetAt time.Time
}

func (c *goCacheCounters) Hit(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if window <= 0 {
		window = c.defaultWindow
	}
	k := c.prefixed(key)

	// 只有窗口内首次命中时 Add 才会成功，并发的调用方会落到
	// 已有计数器的 IncrementInt64 上。
	if err := c.backend.Add(k, int64(1), window); err == nil {
		resetAt := time.Now().Add(window)
		c.backend.Set(k+"#window", windowEntry{resetAt: resetAt}, window)
		return 1, resetAt, nil
	}

	count, err := c.backend.IncrementInt64(k, 1)
	if err != nil {
		// Add 与 Increment 之间条目已过期，开启新窗口。
		c.backend.Set(k, int64(1), window)
		resetAt := time.Now().Add(window)
		c.backend.Set(k+"#window", windowEntry{resetAt: resetAt}, window)
		return 1, resetAt, nil
	}

	resetAt := time.Now().Add(window)
	if raw, ok := c.backend.Get(k + "#window"); ok {
		entry, ok := raw.(windowEntry)
		if !ok {
			return 0, time.Time{}, fmt.Errorf("cache: unexpected window entry %T", raw)
		}
		resetAt = entry.resetAt
	}
	return count, resetAt, nil
}

func (c *goCacheCounters) Reset(_ context.Context, key string) {
	k := c.prefixed(key)
	c.backend.Delete(k)
	c.backend.Delete(k + "#window")
}

func (c *goCacheCounters) Namespace(prefix string) Counters {
	return &goCacheCounters{
		backend:       c.backend,
		defaultWindow: c.defaultWindow,
		prefix:        joinPrefixes(c.prefix, prefix),
	}
}

func (c *goCacheCounters) prefixed(key string) string {
	key = strings.TrimSpace(key)
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func normalizePrefix(prefix string) string {
	return strings.Trim(prefix, ": ")
}

func joinPrefixes(parts ...string) string {
	var normalized []string
	for _, part := range parts {
		if trimmed := normalizePrefix(part); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, ":")
}
