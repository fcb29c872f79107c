package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/lens"
)

var lensCmd = &cobra.Command{
	Use:   "lens",
	Short: "Apply conversation lenses and synthesize lens summaries",
}

// logProgress reports lens progress to the log.
func logProgress(p lens.Progress) {
	zap.L().Info("lens progress",
		zap.String("stage", string(p.Stage)),
		zap.Int("percent", p.Percent),
		zap.String("label", p.StageLabel),
		zap.String("current_lens", p.CurrentLens),
	)
}

func applyRequest(cmd *cobra.Command) lens.ApplyRequest {
	var req lens.ApplyRequest
	req.InterviewID, _ = cmd.Flags().GetString("interview")
	req.TemplateKey, _ = cmd.Flags().GetString("template")
	req.AccountID, _ = cmd.Flags().GetString("account")
	req.ProjectID, _ = cmd.Flags().GetString("project")
	req.CustomInstructions, _ = cmd.Flags().GetString("instructions")
	req.ProcessedBy = "cli"
	return req
}

var lensApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply one lens to an interview",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initPipeline(ctx, "lens")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Applicator.Apply(ctx, applyRequest(cmd), logProgress)
		if err != nil {
			return eris.Wrap(err, "lens apply")
		}
		return printJSON(os.Stdout, res)
	},
}

var lensApplyQACmd = &cobra.Command{
	Use:   "apply-qa",
	Short: "Answer the project's research questions from one interview",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initPipeline(ctx, "lens")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Applicator.ApplyQA(ctx, applyRequest(cmd), logProgress)
		if err != nil {
			return eris.Wrap(err, "lens apply-qa")
		}
		return printJSON(os.Stdout, res)
	},
}

var lensApplyAllCmd = &cobra.Command{
	Use:   "apply-all",
	Short: "Apply the resolved lens set to an interview",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initPipeline(ctx, "lens")
		if err != nil {
			return err
		}
		defer env.Close()

		one := applyRequest(cmd)
		keys, _ := cmd.Flags().GetStringSlice("templates")
		res, err := env.Orchestrator.ApplyAll(ctx, lens.ApplyAllRequest{
			InterviewID:        one.InterviewID,
			AccountID:          one.AccountID,
			ProjectID:          one.ProjectID,
			TemplateKeys:       keys,
			CustomInstructions: one.CustomInstructions,
			ProcessedBy:        one.ProcessedBy,
		}, logProgress)
		if err != nil {
			return eris.Wrap(err, "lens apply-all")
		}
		return printJSON(os.Stdout, res)
	},
}

func synthesizeRequest(cmd *cobra.Command) lens.SynthesizeRequest {
	var req lens.SynthesizeRequest
	req.ProjectID, _ = cmd.Flags().GetString("project")
	req.AccountID, _ = cmd.Flags().GetString("account")
	req.TemplateKey, _ = cmd.Flags().GetString("template")
	req.CustomInstructions, _ = cmd.Flags().GetString("instructions")
	req.Force, _ = cmd.Flags().GetBool("force")
	req.ProcessedBy = "cli"
	return req
}

var lensSynthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Synthesize one template's analyses across a project's interviews",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initPipeline(ctx, "lens")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Synthesizer.Synthesize(ctx, synthesizeRequest(cmd))
		if err != nil {
			return eris.Wrap(err, "lens synthesize")
		}
		return printJSON(os.Stdout, res)
	},
}

var lensSynthesizeCrossCmd = &cobra.Command{
	Use:   "synthesize-cross",
	Short: "Synthesize all lenses of a project into one summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initPipeline(ctx, "lens")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Synthesizer.SynthesizeCrossLens(ctx, synthesizeRequest(cmd))
		if err != nil {
			return eris.Wrap(err, "lens synthesize-cross")
		}
		return printJSON(os.Stdout, res)
	},
}

var lensTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the lens template catalog",
	RunE: func(_ *cobra.Command, _ []string) error {
		catalog, err := lens.LoadCatalog(cfg.Lens.CatalogPath)
		if err != nil {
			return eris.Wrap(err, "load lens catalog")
		}
		formatTemplates(os.Stdout, catalog)
		return nil
	},
}

// formatTemplates writes the catalog as a table.
func formatTemplates(out io.Writer, catalog *lens.Catalog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tNAME\tCATEGORY\tKIND\tACTIVE")
	for _, key := range catalog.Keys() {
		t, err := catalog.Get(key)
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
			t.Key, t.DisplayName(), t.CategoryLabel(), t.ExtractionKind(), t.Active())
	}
	_ = w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{lensApplyCmd, lensApplyQACmd, lensApplyAllCmd} {
		c.Flags().String("interview", "", "interview ID (required)")
		c.Flags().String("account", "", "account ID (default: the interview's)")
		c.Flags().String("project", "", "project ID (default: the interview's)")
		c.Flags().String("instructions", "", "custom instructions for extraction")
		_ = c.MarkFlagRequired("interview")
	}
	lensApplyCmd.Flags().String("template", "", "template key (required)")
	_ = lensApplyCmd.MarkFlagRequired("template")
	lensApplyAllCmd.Flags().StringSlice("templates", nil, "explicit lens keys (default: resolved lens set)")

	for _, c := range []*cobra.Command{lensSynthesizeCmd, lensSynthesizeCrossCmd} {
		c.Flags().String("project", "", "project ID (required)")
		c.Flags().String("account", "", "account ID (default: the analyses')")
		c.Flags().String("instructions", "", "custom instructions for synthesis")
		c.Flags().Bool("force", false, "synthesize even when the summary is up to date")
		_ = c.MarkFlagRequired("project")
	}
	lensSynthesizeCmd.Flags().String("template", "", "template key (required)")
	_ = lensSynthesizeCmd.MarkFlagRequired("template")

	lensCmd.AddCommand(lensApplyCmd, lensApplyQACmd, lensApplyAllCmd,
		lensSynthesizeCmd, lensSynthesizeCrossCmd, lensTemplatesCmd)
	rootCmd.AddCommand(lensCmd)
}
