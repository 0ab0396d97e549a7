package main

import (
	"path/filepath"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/parser"

	"github.com/spf13/cobra"
)

func newEligibilityCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility <criteria.json> <resume>",
		Short: "按结构化要求评估一份简历",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var criteria matching.Criteria
			if err := readJSON(args[0], &criteria); err != nil {
				return err
			}
			if err := criteria.Validate(); err != nil {
				return err
			}
			text, err := readText(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			report := matching.Evaluate(filepath.Base(args[1]), parser.ExtractMetadata(text), text, criteria)
			if opts.asJSON {
				return printJSON(cmd, report)
			}
			cmd.Printf("%s: 总分=%d 合格=%v\n", report.ResumeID, report.OverallScore, report.IsEligible)
			for name, c := range report.Criteria {
				cmd.Printf("  %-24s %-8s %3d %v\n", name, c.Status, c.Score, c.Details)
			}
			for _, m := range report.MissingRequirements {
				cmd.Printf("  缺少: %s\n", m)
			}
			for _, r := range report.Recommendations {
				cmd.Printf("  建议: %s\n", r)
			}
			return nil
		},
	}
}
