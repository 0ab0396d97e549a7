package main

import (
	"github.com/12222526/Rag-Resume/internal/matching"

	"github.com/spf13/cobra"
)

// 文本输出时每个向量展示的分量数
const previewDims = 4

func newEmbedCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <file>",
		Short: "分块并用哈希向量化器生成向量",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedder := matching.NewHashEmbedder()
			doc, err := opts.loadResume(cmd.Context(), embedder, args[0])
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd, doc.Chunks)
			}
			cmd.Printf("维度: %d, 分块: %d\n", embedder.GetDimensions(), len(doc.Chunks))
			for i, c := range doc.Chunks {
				n := previewDims
				if len(c.Vector) < n {
					n = len(c.Vector)
				}
				cmd.Printf("[%d] %.4f ... %s\n", i, c.Vector[:n], matching.Snippet(c.Text, 60))
			}
			return nil
		},
	}
}
