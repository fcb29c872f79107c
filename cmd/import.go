package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/store"
)

var importFixturePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load projects, interviews, questions and evidence from a JSON fixture into SQLite",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Store.Driver != "sqlite" {
			return eris.New("import requires store.driver=sqlite (LENS_STORE_DRIVER)")
		}

		f, err := store.ReadFixture(importFixturePath)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sq, ok := st.(*store.SQLiteStore)
		if !ok {
			return eris.New("import: store is not sqlite")
		}
		if err := sq.LoadFixture(ctx, f); err != nil {
			return eris.Wrap(err, "import fixture")
		}

		zap.L().Info("import complete",
			zap.String("fixture", importFixturePath),
			zap.Int("projects", len(f.Projects)),
			zap.Int("interviews", len(f.Interviews)),
			zap.Int("evidence", len(f.Evidence)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFixturePath, "fixture", "", "path to JSON fixture file (required)")
	_ = importCmd.MarkFlagRequired("fixture")
	rootCmd.AddCommand(importCmd)
}
