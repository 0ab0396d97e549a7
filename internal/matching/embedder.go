package matching

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"golang.org/x/sync/errgroup"
)

// HashEmbeddingDimensions 哈希占位向量的维度
const HashEmbeddingDimensions = 384

// Embedder 文本向量化接口，签名与 eino embedding.Embedder 一致，并暴露维度
type Embedder interface {
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)
	GetDimensions() int
}

// HashEmbedder 基于内容哈希与逐词扰动的确定性占位向量化器，输出为单位向量
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder 创建哈希向量化器
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{dims: HashEmbeddingDimensions}
}

var _ embedding.Embedder = (*HashEmbedder)(nil)

// EmbedStrings 逐条计算哈希向量
func (h *HashEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(t)
	}
	return out, nil
}

// GetDimensions 返回向量维度
func (h *HashEmbedder) GetDimensions() int {
	return h.dims
}

func (h *HashEmbedder) embed(text string) []float64 {
	lower := strings.ToLower(text)

	// 按 int32 截断的移位哈希
	var seed int64
	for _, r := range lower {
		seed = int64(int32(seed)<<5) - seed + int64(r)
	}
	words := strings.Fields(lower)

	vec := make([]float64, h.dims)
	for i := range vec {
		v := math.Sin(float64(seed+int64(i))) * 0.5
		for wi, w := range words {
			first := []rune(w)[0]
			v += math.Sin(float64(int(first)+i+wi)) * 0.1
		}
		vec[i] = v
	}
	return Normalize(vec)
}

type batchConfig struct {
	batchSize   int
	concurrency int
}

// BatchOption 批量向量化选项
type BatchOption func(*batchConfig)

// WithBatchSize 每次调用后端的文本条数
func WithBatchSize(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithConcurrency 并发调用后端的上限
func WithConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Embed 向量化单条文本
func Embed(ctx context.Context, e Embedder, text string) ([]float64, error) {
	vecs, err := EmbedAll(ctx, e, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedAll 分批并发向量化，输出顺序与长度和输入一致。
// 任意一批失败都会取消其余批次并返回 ComputationError，不会返回部分结果。
func EmbedAll(ctx context.Context, e Embedder, texts []string, opts ...BatchOption) ([][]float64, error) {
	cfg := batchConfig{batchSize: 16, concurrency: 4}
	for _, opt := range opts {
		opt(&cfg)
	}
	if e == nil {
		return nil, NewComputationError("embed", fmt.Errorf("embedder 未配置"))
	}

	out := make([][]float64, len(texts))
	dims := e.GetDimensions()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for start := 0; start < len(texts); start += cfg.batchSize {
		end := min(start+cfg.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.EmbedStrings(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("向量数量不匹配: 期望 %d, 实际 %d", end-start, len(vecs))
			}
			for i, v := range vecs {
				if dims > 0 && len(v) != dims {
					return fmt.Errorf("第 %d 条向量维度为 %d, 期望 %d", start+i, len(v), dims)
				}
				out[start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, NewComputationError("embed", err)
	}
	return out, nil
}

// EmbedChunks 为分块生成向量，保持分块顺序
func EmbedChunks(ctx context.Context, e Embedder, chunks []TextChunk, opts ...BatchOption) ([]EmbeddedChunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := EmbedAll(ctx, e, texts, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = EmbeddedChunk{TextChunk: c, Vector: vecs[i]}
	}
	return out, nil
}
