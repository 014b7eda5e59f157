package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/export"
	"github.com/sells-group/solar-cli/internal/viewstate"
	"github.com/sells-group/solar-cli/pkg/solar"
)

var (
	exportFormat string
	exportOut    string
	exportState  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export summaries or installations as XLSX or GeoJSON",
	Long: "xlsx writes the per-state summary workbook, or the installations of --state. " +
		"geojson writes installation points for --state, or for every state.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		state := strings.ToUpper(strings.TrimSpace(exportState))
		if exportFormat != "xlsx" && exportFormat != "geojson" {
			return eris.Errorf("export: unknown format %q (want xlsx or geojson)", exportFormat)
		}
		vs, err := newViewStore()
		if err != nil {
			return err
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", exportOut)
		}
		defer f.Close() //nolint:errcheck

		switch exportFormat {
		case "xlsx":
			if state != "" {
				insts, err := exportInstallations(cmd, vs, state)
				if err != nil {
					return err
				}
				if err := export.WriteInstallationsXLSX(f, insts); err != nil {
					return err
				}
			} else {
				if err := vs.FetchSolarData(ctx); err != nil {
					return fetchError(vs, err)
				}
				if err := export.WriteSummariesXLSX(f, vs.Snapshot().Summaries); err != nil {
					return err
				}
			}
		case "geojson":
			insts, err := exportInstallations(cmd, vs, state)
			if err != nil {
				return err
			}
			data, err := export.InstallationsGeoJSON(insts)
			if err != nil {
				return err
			}
			if _, err := f.Write(data); err != nil {
				return eris.Wrapf(err, "export: write %s", exportOut)
			}
		}

		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "export: close %s", exportOut)
		}
		zap.L().Info("export complete",
			zap.String("format", exportFormat),
			zap.String("out", exportOut),
			zap.String("state", state),
		)
		return nil
	},
}

// exportInstallations fetches the installations of state, or all of them
// when state is empty.
func exportInstallations(cmd *cobra.Command, vs *viewstate.Store, state string) ([]solar.Installation, error) {
	if state != "" {
		if err := vs.FetchStateData(cmd.Context(), state); err != nil {
			return nil, fetchError(vs, err)
		}
		return vs.Snapshot().StateData.Installations, nil
	}
	if err := vs.FetchInstallations(cmd.Context(), solar.InstallationQuery{}); err != nil {
		return nil, fetchError(vs, err)
	}
	return vs.Snapshot().Installations, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "export format: xlsx or geojson")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path (required)")
	exportCmd.Flags().StringVar(&exportState, "state", "", "limit the export to one state")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
