package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 基于滑动窗口的阻塞式限流器，窗口固定为一分钟。
// maxPerMinute <= 0 时不做任何限制。
type Limiter struct {
	maxPerMinute int

	mu     sync.Mutex
	stamps []time.Time

	// 测试时可替换的时钟与休眠实现
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New 创建限流器。
func New(maxPerMinute int) *Limiter {
	return &Limiter{
		maxPerMinute: maxPerMinute,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Acquire 阻塞直到最近一分钟内的请求数低于上限，然后记录本次请求。
// 检查和记录在同一把锁内完成，多个并发调用不会突破窗口上限。
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.maxPerMinute <= 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := l.now()
		windowStart := now.Add(-time.Minute)

		// 淘汰窗口外的记录
		idx := 0
		for idx < len(l.stamps) && l.stamps[idx].Before(windowStart) {
			idx++
		}
		if idx > 0 {
			l.stamps = append(l.stamps[:0], l.stamps[idx:]...)
		}

		if len(l.stamps) < l.maxPerMinute {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}

		wait := time.Minute - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
