package processor

import (
	"context"
	"fmt"
	"log"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"
)

// BuildComponents 按配置构建核心组件，再应用额外的组件选项（存储等）
func BuildComponents(ctx context.Context, cfg *config.Config, loggerProvider func(prefix string) *log.Logger, opts ...ComponentOpt) (*Components, error) {
	extractor, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(loggerProvider("[EinoPDF] ")))
	if err != nil {
		return nil, fmt.Errorf("初始化PDF解析器失败: %w", err)
	}

	chunker, err := matching.NewChunker(
		matching.WithChunkSize(cfg.Matching.ChunkSize),
		matching.WithChunkOverlap(cfg.Matching.ChunkOverlap),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := parser.NewEmbedder(cfg.Embedding, loggerProvider("[Embedder] "))
	if err != nil {
		return nil, fmt.Errorf("初始化向量化后端失败: %w", err)
	}

	comp := &Components{
		Extractor: extractor,
		Chunker:   chunker,
		Embedder:  embedder,
		Scorer: matching.NewScorer(
			matching.WithRelevanceThreshold(cfg.Matching.RelevanceThreshold),
			matching.WithMaxEvidence(cfg.Matching.MaxEvidence),
			matching.WithScoreConcurrency(cfg.Matching.Concurrency),
		),
	}
	for _, opt := range opts {
		opt(comp)
	}
	return comp, nil
}
