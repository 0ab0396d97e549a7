package main

import (
	"github.com/12222526/Rag-Resume/internal/matching"

	"github.com/spf13/cobra"
)

func newChunkCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chunk <file>",
		Short: "按滑动窗口切分简历或岗位文本",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			chunker, err := opts.chunker()
			if err != nil {
				return err
			}
			chunks := chunker.Chunk(text)
			if opts.asJSON {
				return printJSON(cmd, chunks)
			}
			cmd.Printf("共 %d 个分块 (size=%d, overlap=%d)\n", len(chunks), chunker.Size(), chunker.Overlap())
			for i, c := range chunks {
				cmd.Printf("[%d] %d-%d %s\n", i, c.StartOffset, c.EndOffset, matching.Snippet(c.Text, 80))
			}
			return nil
		},
	}
}
