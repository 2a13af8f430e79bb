// 文件路径: internal/security/ratelimiter.go
// 模块说明: 固定窗口限流器，计数保存在 cache.Counters 中。
package security

import (
	"context"
	"fmt"
	"time"

	"github.com/creamcroissant/apiserver/internal/cache"
)

// RateLimiter 控制同一客户端在窗口内的请求次数。
type RateLimiter struct {
	counters cache.Counters
}

// RateResult 描述 Allow 调用的结果。
type RateResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// NewRateLimiter 使用计数器构建限流器。
func NewRateLimiter(counters cache.Counters) (*RateLimiter, error) {
	if counters == nil {
		return nil, fmt.Errorf("rate limiter requires counters / 限流器需要计数器")
	}
	return &RateLimiter{counters: counters.Namespace("rate")}, nil
}

// Allow 判断指定 key 是否可以在当前限额内继续执行。
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateResult, error) {
	if l == nil {
		return RateResult{}, fmt.Errorf("rate limiter not initialized / 限流器未初始化")
	}
	if limit <= 0 {
		return RateResult{}, fmt.Errorf("limit must be positive / limit 必须为正数")
	}
	if window <= 0 {
		window = time.Minute
	}

	current, resetAt, err := l.counters.Hit(ctx, key, window)
	if err != nil {
		return RateResult{}, fmt.Errorf("increment rate limit counter: %w", err)
	}

	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return RateResult{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset 清除指定 key 的计数。
func (l *RateLimiter) Reset(ctx context.Context, key string) {
	if l == nil {
		return
	}
	l.counters.Reset(ctx, key)
}
