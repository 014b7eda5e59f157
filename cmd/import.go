package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/dataset"
	"github.com/sells-group/solar-cli/internal/fetcher"
	"github.com/sells-group/solar-cli/internal/store"
)

var (
	importSource string
	importForce  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the USPVDB dataset into the configured store",
	Long:  "Loads installations from a CSV, ZIP or shapefile source (local path or URL) and replaces the stored set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importSource != "" {
			cfg.Dataset.Source = importSource
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		source := cfg.Dataset.Source

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var etag string
		if dataset.IsRemote(source) {
			last, err := st.LatestImport(ctx)
			if err != nil {
				return eris.Wrap(err, "import: latest run")
			}
			change, err := fetcher.DetectChange(ctx, newFetcher(), source, last)
			if err != nil {
				zap.L().Warn("import: revision lookup failed", zap.String("source", source), zap.Error(err))
			}
			etag = change.ETag
			if change.Unchanged && !importForce {
				zap.L().Info("import: source unchanged, skipping",
					zap.String("source", source),
					zap.String("etag", etag),
				)
				fmt.Fprintln(cmd.OutOrStdout(), "Source unchanged since last import; use --force to re-import.")
				return nil
			}
		}

		res, err := populate(ctx, st, source, etag)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d installations (%d rows skipped) from %s\n",
			len(res.Installations), res.Failed, source)
		return nil
	},
}

var importStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent import run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.LatestImport(ctx)
		if err != nil {
			return eris.Wrap(err, "import status")
		}
		if run == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No imports found.")
			return nil
		}

		return render(cmd.OutOrStdout(), outputFormat, run, func(w io.Writer) {
			formatImportRun(w, run)
		})
	},
}

func formatImportRun(w io.Writer, run *store.ImportRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", run.ID)
	fmt.Fprintf(tw, "SOURCE\t%s\n", run.Source)
	if run.ETag != "" {
		fmt.Fprintf(tw, "ETAG\t%s\n", run.ETag)
	}
	fmt.Fprintf(tw, "STATUS\t%s\n", run.Status)
	fmt.Fprintf(tw, "IMPORTED\t%d\n", run.Imported)
	fmt.Fprintf(tw, "FAILED\t%d\n", run.Failed)
	fmt.Fprintf(tw, "STARTED\t%s\n", run.StartedAt.Format("2006-01-02 15:04"))
	if run.FinishedAt != nil {
		fmt.Fprintf(tw, "DURATION\t%s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	if run.Error != "" {
		fmt.Fprintf(tw, "ERROR\t%s\n", run.Error)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "dataset path or URL (default from config)")
	importCmd.Flags().BoolVar(&importForce, "force", false, "re-import even when the source ETag is unchanged")
	importCmd.AddCommand(importStatusCmd)
	rootCmd.AddCommand(importCmd)
}
