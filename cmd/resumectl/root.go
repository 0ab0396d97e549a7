package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"

	"github.com/spf13/cobra"
)

// globalOptions 所有子命令共享的参数
type globalOptions struct {
	chunkSize int
	overlap   int
	asJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "resumectl",
		Short:         "离线的简历分块、向量化与匹配工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&opts.chunkSize, "chunk-size", matching.DefaultChunkSize, "分块窗口大小（字符）")
	root.PersistentFlags().IntVar(&opts.overlap, "overlap", matching.DefaultChunkOverlap, "相邻分块重叠（字符）")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "以 JSON 输出")

	root.AddCommand(
		newChunkCmd(opts),
		newEmbedCmd(opts),
		newScoreCmd(opts),
		newEligibilityCmd(opts),
		newEventsCmd(),
	)
	return root
}

func (o *globalOptions) chunker() (*matching.Chunker, error) {
	return matching.NewChunker(matching.WithChunkSize(o.chunkSize), matching.WithChunkOverlap(o.overlap))
}

// readText 读取 PDF 或纯文本文件的全文
func readText(ctx context.Context, path string) (string, error) {
	mimeType := parser.DetectMimeType(path)
	if mimeType == "" {
		return "", fmt.Errorf("%s: 仅支持 PDF 与 TXT 文件", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if mimeType == parser.MimeText {
		return string(data), nil
	}
	extractor, err := parser.NewEinoPDFTextExtractor(ctx)
	if err != nil {
		return "", err
	}
	text, _, err := extractor.ExtractText(ctx, filepath.Base(path), mimeType, data)
	return text, err
}

// loadResume 读取简历文件，分块、向量化并抽取元数据
func (o *globalOptions) loadResume(ctx context.Context, embedder matching.Embedder, path string) (matching.Document, error) {
	text, err := readText(ctx, path)
	if err != nil {
		return matching.Document{}, err
	}
	chunker, err := o.chunker()
	if err != nil {
		return matching.Document{}, err
	}
	chunks, err := matching.EmbedChunks(ctx, embedder, chunker.Chunk(text))
	if err != nil {
		return matching.Document{}, err
	}
	return matching.Document{
		ID:       filepath.Base(path),
		Title:    filepath.Base(path),
		Text:     text,
		Chunks:   chunks,
		Metadata: parser.ExtractMetadata(text),
	}, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
