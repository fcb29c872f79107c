package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/publish"
	"github.com/sells-group/lens-cli/pkg/notion"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a project's completed lens summaries to Notion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("publish"); err != nil {
			return err
		}
		catalog, err := lens.LoadCatalog(cfg.Lens.CatalogPath)
		if err != nil {
			return eris.Wrap(err, "load lens catalog")
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		project, _ := cmd.Flags().GetString("project")
		p := publish.NewPublisher(notion.NewClient(cfg.Notion.Token), cfg.Notion.SummaryDB, catalog)
		res, err := p.PublishProject(ctx, st, project)
		if err != nil {
			return eris.Wrap(err, "publish")
		}
		zap.L().Info("publish complete",
			zap.String("project_id", project),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
			zap.Int("skipped", res.Skipped),
		)
		return printJSON(os.Stdout, res)
	},
}

func init() {
	publishCmd.Flags().String("project", "", "project ID (required)")
	_ = publishCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(publishCmd)
}
