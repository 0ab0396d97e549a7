package main

import (
	"fmt"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/storage/models"

	"github.com/spf13/cobra"
)

// jobFile 岗位描述文件格式
type jobFile struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Requirements string   `json:"requirements"`
	Experience   string   `json:"experience"`
	Skills       []string `json:"skills"`
}

func newScoreCmd(opts *globalOptions) *cobra.Command {
	var (
		topN      int
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "score <job.json> <resume>...",
		Short: "对一个岗位给多份简历评分并排序",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var jf jobFile
			if err := readJSON(args[0], &jf); err != nil {
				return err
			}
			if jf.Description == "" || jf.Requirements == "" {
				return fmt.Errorf("%s: description 与 requirements 不能为空", args[0])
			}
			if jf.ID == "" {
				jf.ID = "job"
			}

			embedder := matching.NewHashEmbedder()
			chunker, err := opts.chunker()
			if err != nil {
				return err
			}
			fullText := models.JobFullText(jf.Description, jf.Requirements)
			jobChunks, err := matching.EmbedChunks(ctx, embedder, chunker.Chunk(fullText))
			if err != nil {
				return err
			}
			job := matching.JobDocument{
				Document:    matching.Document{ID: jf.ID, Title: jf.Title, Text: fullText, Chunks: jobChunks},
				Description: jf.Description,
				Experience:  jf.Experience,
				Skills:      jf.Skills,
			}

			resumes := make([]matching.Document, 0, len(args)-1)
			for _, path := range args[1:] {
				doc, err := opts.loadResume(ctx, embedder, path)
				if err != nil {
					return err
				}
				resumes = append(resumes, doc)
			}

			results, err := matching.NewScorer(matching.WithRelevanceThreshold(threshold)).ScoreAll(ctx, job, resumes)
			if err != nil {
				return err
			}
			top, matched := matching.RankMatches(results, topN)
			if opts.asJSON {
				return printJSON(cmd, top)
			}
			cmd.Printf("岗位: %s, 候选人: %d, 有效匹配: %d\n", jf.Title, len(resumes), matched)
			for i, r := range top {
				cmd.Printf("%d. %s 总分=%d 技能=%d 经验=%d 学历=%d 证据=%d\n", i+1, r.ResumeID, r.Score,
					r.MatchDetails.SkillsMatch, r.MatchDetails.ExperienceMatch, r.MatchDetails.EducationMatch, len(r.Evidence))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topN, "top", "n", matching.DefaultTopN, "保留前 N 名")
	cmd.Flags().Float64Var(&threshold, "threshold", matching.DefaultRelevanceThreshold, "证据相关度阈值")
	return cmd
}
