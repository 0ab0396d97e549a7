package ratelimit

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket 基于 x/time/rate 的令牌桶限流器，附带指数退避重试
type TokenBucket struct {
	limiter       *rate.Limiter
	retryWaitTime time.Duration // 重试等待时间
	maxRetries    int           // 最大重试次数
}

// NewTokenBucket 创建一个新的令牌桶限流器，qpm<=0 表示不限流
func NewTokenBucket(qpm int, capacity int) *TokenBucket {
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}

	limit := rate.Inf
	if qpm > 0 {
		limit = rate.Limit(float64(qpm) / 60.0)
	}

	return &TokenBucket{
		limiter:       rate.NewLimiter(limit, capacity),
		retryWaitTime: 1 * time.Second,
		maxRetries:    3,
	}
}

// WithRetryPolicy 设置重试策略
func (tb *TokenBucket) WithRetryPolicy(waitTime time.Duration, maxRetries int) *TokenBucket {
	tb.retryWaitTime = waitTime
	tb.maxRetries = maxRetries
	return tb
}

// Allow 判断是否允许通过一个请求，消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait 等待直到有令牌可用
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// RetryWithBackoff 每次尝试前先取令牌，可重试错误按 retryWaitTime*2^n 退避
func (tb *TokenBucket) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= tb.maxRetries; attempt++ {
		if err = tb.Wait(ctx); err != nil {
			return err
		}
		if err = fn(); err == nil || !isRetryableError(ctx, err) || attempt == tb.maxRetries {
			return err
		}

		timer := time.NewTimer(tb.retryWaitTime << uint(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// 向量化服务限流与网关错误的常见报文
var retryableMarkers = []string{
	"429", "502", "503", "504",
	"Throttling", "rate limit", "connection reset", "connection refused", "EOF",
	"服务器繁忙", "请求超过限额", "QPS限制",
}

// isRetryableError 网络超时与服务端限流可重试，调用方取消不重试
func isRetryableError(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, m := range retryableMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
