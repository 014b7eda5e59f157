package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/solar-cli/pkg/solar"
)

var statesSort string

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List states with installations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		vs, err := newViewStore()
		if err != nil {
			return err
		}
		if err := vs.FetchStates(cmd.Context()); err != nil {
			return fetchError(vs, err)
		}

		states := vs.Snapshot().States
		if statesSort == "capacity" {
			states = vs.StatesSortedByCapacity()
		}
		return render(cmd.OutOrStdout(), outputFormat, solar.StatesResponse{States: states}, func(w io.Writer) {
			formatStates(w, states)
		})
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <CODE>",
	Short: "Show statistics and installations for one state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vs, err := newViewStore()
		if err != nil {
			return err
		}
		if err := vs.FetchStateData(cmd.Context(), args[0]); err != nil {
			return fetchError(vs, err)
		}

		snap := vs.Snapshot()
		return render(cmd.OutOrStdout(), outputFormat, snap.StateData, func(w io.Writer) {
			formatStateDetail(w, snap.Selected, snap.StateData)
		})
	},
}

var breakdownCmd = &cobra.Command{
	Use:   "breakdown <CODE>",
	Short: "Show capacity by year and technology for one state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vs, err := newViewStore()
		if err != nil {
			return err
		}
		if err := vs.FetchStateBreakdown(cmd.Context(), args[0]); err != nil {
			return fetchError(vs, err)
		}

		b := vs.Snapshot().Breakdown
		return render(cmd.OutOrStdout(), outputFormat, b, func(w io.Writer) {
			formatBreakdown(w, b)
		})
	},
}

var installationsQuery solar.InstallationQuery

var installationsCmd = &cobra.Command{
	Use:   "installations",
	Short: "List installations matching filters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		q := installationsQuery
		q.State = strings.ToUpper(strings.TrimSpace(q.State))

		vs, err := newViewStore()
		if err != nil {
			return err
		}
		if err := vs.FetchInstallations(cmd.Context(), q); err != nil {
			return fetchError(vs, err)
		}

		insts := vs.Snapshot().Installations
		if insts == nil {
			insts = []solar.Installation{}
		}
		return render(cmd.OutOrStdout(), outputFormat, insts, func(w io.Writer) {
			formatInstallations(w, insts)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show nationwide statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		vs, err := newViewStore()
		if err != nil {
			return err
		}
		if err := vs.FetchNationwideStats(cmd.Context()); err != nil {
			return fetchError(vs, err)
		}

		stats := vs.Snapshot().Nationwide
		return render(cmd.OutOrStdout(), outputFormat, stats, func(w io.Writer) {
			formatNationwide(w, stats)
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show per-state capacity summaries",
	Long:  "Prefetches summaries, states and nationwide statistics, then prints the per-state capacity table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		vs, err := newViewStore()
		if err != nil {
			return err
		}
		if err := vs.Prefetch(cmd.Context()); err != nil {
			return fetchError(vs, err)
		}

		snap := vs.Snapshot()
		return render(cmd.OutOrStdout(), outputFormat, snap.Summaries, func(w io.Writer) {
			formatSummaries(w, snap.Summaries)
			if snap.Nationwide != nil {
				io.WriteString(w, "\n") //nolint:errcheck
				formatNationwide(w, snap.Nationwide)
			}
		})
	},
}

func init() {
	statesCmd.Flags().StringVar(&statesSort, "sort", "code", "sort order: code or capacity")

	f := installationsCmd.Flags()
	f.StringVar(&installationsQuery.State, "state", "", "two-letter state code")
	f.IntVar(&installationsQuery.Year, "year", 0, "installation year")
	f.Float64Var(&installationsQuery.MinCapacity, "min-capacity", 0, "minimum AC capacity in MW")
	f.IntVar(&installationsQuery.Limit, "limit", 0, "maximum rows (0 for all)")
	f.IntVar(&installationsQuery.Offset, "offset", 0, "rows to skip")

	rootCmd.AddCommand(statesCmd, stateCmd, breakdownCmd, installationsCmd, statsCmd, summaryCmd)
}
