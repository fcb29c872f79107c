package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/research"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Link project evidence to research questions and update answers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		req := research.Request{}
		req.ProjectID, _ = cmd.Flags().GetString("project")
		req.InterviewID, _ = cmd.Flags().GetString("interview")
		req.CustomInstructions, _ = cmd.Flags().GetString("instructions")
		if cmd.Flags().Changed("min-confidence") {
			mc, _ := cmd.Flags().GetFloat64("min-confidence")
			req.MinConfidence = &mc
		}

		res, err := env.Analyzer.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("project_id", req.ProjectID),
			zap.String("run_id", res.RunID),
			zap.Int("evidence_analyzed", res.Summary.EvidenceAnalyzed),
			zap.Int("answers_created", res.Summary.AnswersCreated),
			zap.Int("answers_updated", res.Summary.AnswersUpdated),
		)
		return printJSON(os.Stdout, res)
	},
}

func init() {
	analyzeCmd.Flags().String("project", "", "project ID (required)")
	analyzeCmd.Flags().String("interview", "", "limit evidence to one interview")
	analyzeCmd.Flags().String("instructions", "", "custom instructions for the linker")
	analyzeCmd.Flags().Float64("min-confidence", 0, "override analysis.min_confidence for this run")
	_ = analyzeCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(analyzeCmd)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
