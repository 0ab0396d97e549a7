package parser

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ollamaClient langchaingo ollama.LLM 的向量化子集，便于测试替换
type ollamaClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// OllamaEmbedder 通过本地 Ollama 模型生成向量
type OllamaEmbedder struct {
	client     ollamaClient
	model      string
	dimensions int
	logger     *log.Logger
}

// NewOllamaEmbedder 创建 Ollama 向量化器
func NewOllamaEmbedder(cfg config.EmbeddingConfig, logger *log.Logger) (*OllamaEmbedder, error) {
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("初始化 Ollama 客户端失败: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[OllamaEmbedder] ", log.LstdFlags|log.Lshortfile)
	}
	return &OllamaEmbedder{client: llm, model: model, dimensions: cfg.Dimensions, logger: logger}, nil
}

// EmbedStrings 实现 embedding.Embedder，float32 结果转换为归一化的 float64
func (o *OllamaEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	raw, err := o.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("Ollama 向量化失败(model=%s): %w", o.model, err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("Ollama 返回向量数量 %d 与输入 %d 不一致", len(raw), len(texts))
	}

	out := make([][]float64, len(raw))
	for i, v := range raw {
		vec := make([]float64, len(v))
		for j, x := range v {
			vec[j] = float64(x)
		}
		out[i] = matching.Normalize(vec)
	}
	o.logger.Printf("Ollama 向量化完成: texts=%d, dim=%d", len(texts), firstEmbeddingDim(out))
	return out, nil
}

// GetDimensions 返回配置的维度
func (o *OllamaEmbedder) GetDimensions() int {
	return o.dimensions
}
