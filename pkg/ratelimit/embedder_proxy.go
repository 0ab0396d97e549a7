package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// Embedder 带维度信息的向量化接口
type Embedder interface {
	embedding.Embedder
	GetDimensions() int
}

// RateLimitedEmbedder 对向量化调用进行限流与重试的代理
type RateLimitedEmbedder struct {
	original    Embedder
	rateLimiter *TokenBucket
}

// NewRateLimitedEmbedder 创建一个新的限流向量化代理
func NewRateLimitedEmbedder(original Embedder, qpm int) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2), // 容量设为QPM的一半，允许一定的突发流量
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedEmbedder) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedEmbedder {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// EmbedStrings 代理EmbedStrings方法，增加限流和重试逻辑
func (rl *RateLimitedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	var vectors [][]float64
	err := rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var embedErr error
		vectors, embedErr = rl.original.EmbedStrings(ctx, texts, opts...)
		return embedErr
	})
	return vectors, err
}

// GetDimensions 返回被代理向量化器的维度
func (rl *RateLimitedEmbedder) GetDimensions() int {
	return rl.original.GetDimensions()
}
