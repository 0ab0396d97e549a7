package parser

import (
	"fmt"
	"log"
	"time"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/pkg/ratelimit"
)

// NewEmbedder 按配置创建向量化后端，远程后端统一包上限流与重试
func NewEmbedder(cfg config.EmbeddingConfig, logger *log.Logger) (matching.Embedder, error) {
	switch cfg.Provider {
	case "", "hash":
		return matching.NewHashEmbedder(), nil
	case "aliyun":
		var opts []AliyunEmbedderOption
		if logger != nil {
			opts = append(opts, WithAliyunLogger(logger))
		}
		e, err := NewAliyunEmbedder(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRateLimitedEmbedder(e, cfg.QPM).WithRetryPolicy(time.Second, 3), nil
	case "ollama":
		e, err := NewOllamaEmbedder(cfg, logger)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRateLimitedEmbedder(e, cfg.QPM).WithRetryPolicy(500*time.Millisecond, 2), nil
	default:
		return nil, fmt.Errorf("未知的 embedding provider: %s", cfg.Provider)
	}
}
