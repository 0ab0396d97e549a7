package matching

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize 默认窗口大小（rune）
	DefaultChunkSize = 1000
	// DefaultChunkOverlap 默认相邻分块重叠（rune）
	DefaultChunkOverlap = 200

	sentenceCutRatio = 0.7
	wordCutRatio     = 0.8
)

// Chunker 带重叠的边界感知分块器
type Chunker struct {
	size    int
	overlap int
}

// ChunkerOption 定义分块器的配置选项
type ChunkerOption func(*Chunker)

// WithChunkSize 设置窗口大小
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithChunkOverlap 设置重叠长度
func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// NewChunker 创建分块器，overlap 必须小于 size
func NewChunker(opts ...ChunkerOption) (*Chunker, error) {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.size <= 0 {
		return nil, NewValidationError("chunk", fmt.Sprintf("chunk size 必须为正数, 实际为 %d", c.size))
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return nil, NewValidationError("chunk", fmt.Sprintf("overlap(%d) 必须满足 0 <= overlap < size(%d)", c.overlap, c.size))
	}
	return c, nil
}

// Size 返回窗口大小
func (c *Chunker) Size() int { return c.size }

// Overlap 返回重叠长度
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk 从头向后扫描切分文本。
// 窗口未到文末时，优先在窗口 70% 之后的最后一个句号处截断，其次在 80% 之后的最后一个空白处，否则按 size 硬切。
// 每次前进 (实际长度 - overlap)，至少前进 1。
func (c *Chunker) Chunk(text string) []TextChunk {
	runes := []rune(text)
	n := len(runes)
	chunks := make([]TextChunk, 0, n/c.size+1)

	for start := 0; start < n; {
		end := min(start+c.size, n)
		if end < n {
			window := runes[start:end]
			if idx := lastIndexFunc(window, func(r rune) bool { return r == '.' }); float64(idx) > float64(c.size)*sentenceCutRatio {
				end = start + idx + 1
			} else if idx := lastIndexFunc(window, unicode.IsSpace); float64(idx) > float64(c.size)*wordCutRatio {
				end = start + idx
			}
		}

		if trimmed := strings.TrimSpace(string(runes[start:end])); trimmed != "" {
			chunks = append(chunks, TextChunk{Text: trimmed, StartOffset: start, EndOffset: end})
		}
		if end >= n {
			break
		}
		start += max(1, end-start-c.overlap)
	}
	return chunks
}

// ChunkText 便捷函数，等价于 NewChunker(size, overlap).Chunk(text)
func ChunkText(text string, size, overlap int) ([]TextChunk, error) {
	c, err := NewChunker(WithChunkSize(size), WithChunkOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return c.Chunk(text), nil
}

func lastIndexFunc(rs []rune, f func(rune) bool) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if f(rs[i]) {
			return i
		}
	}
	return -1
}
