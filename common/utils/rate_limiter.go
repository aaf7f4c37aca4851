package utils

import (
	"sync"
	"time"
)

// RateLimiter 令牌桶
type RateLimiter struct {
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter 创建一个新的限流器
// rate: 每秒补充的令牌数
// burst: 桶的容量，即允许的突发请求数
func NewRateLimiter(rate int, burst int) *RateLimiter {
	return newRateLimiter(rate, burst, time.Now)
}

func newRateLimiter(rate, burst int, now func() time.Time) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:       float64(rate),
		capacity:   float64(burst),
		tokens:     float64(burst),
		lastRefill: now(),
		now:        now,
	}
}

// Allow 判断当前请求是否允许通过
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.allowAt(rl.now())
}

func (rl *RateLimiter) allowAt(now time.Time) bool {
	if elapsed := now.Sub(rl.lastRefill).Seconds(); elapsed > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+elapsed*rl.rate)
	}
	rl.lastRefill = now

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

// idle 桶已经补满，丢掉和新建没有区别
func (rl *RateLimiter) idle(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens+now.Sub(rl.lastRefill).Seconds()*rl.rate >= rl.capacity
}

// KeyedRateLimiter 按 key（玩家）各自一个令牌桶
type KeyedRateLimiter struct {
	rate    int
	burst   int
	buckets map[string]*RateLimiter
	now     func() time.Time
	calls   int
	mu      sync.Mutex
}

func NewKeyedRateLimiter(rate, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*RateLimiter),
		now:     time.Now,
	}
}

// WithClock 替换时钟，测试用
func (k *KeyedRateLimiter) WithClock(now func() time.Time) *KeyedRateLimiter {
	k.now = now
	return k
}

func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	now := k.now()
	bucket, ok := k.buckets[key]
	if !ok {
		bucket = newRateLimiter(k.rate, k.burst, k.now)
		k.buckets[key] = bucket
	}
	// 每 1024 次顺带清理一次满桶
	k.calls++
	if k.calls%1024 == 0 {
		for id, b := range k.buckets {
			if id != key && b.idle(now) {
				delete(k.buckets, id)
			}
		}
	}
	k.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return bucket.allowAt(now)
}

// Len 当前跟踪的 key 数
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
