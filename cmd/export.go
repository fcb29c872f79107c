package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project's answers, evidence links and lens summaries to XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, _ := cmd.Flags().GetString("project")
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = project + ".xlsx"
		}

		stats, err := export.WriteFile(ctx, st, project, out)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		zap.L().Info("export complete",
			zap.String("path", out),
			zap.Int("answers", stats.Answers),
			zap.Int("links", stats.Links),
			zap.Int("summaries", stats.Summaries),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("project", "", "project ID (required)")
	exportCmd.Flags().String("out", "", "output path (default <project>.xlsx)")
	_ = exportCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(exportCmd)
}
