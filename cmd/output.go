package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/solar-cli/pkg/solar"
)

// render writes v as JSON or YAML, or calls table for the default format.
func render(w io.Writer, format string, v any, table func(w io.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "output: encode json")
	case "yaml":
		// Round-trip through JSON so field names match the API.
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "output: encode json")
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return eris.Wrap(err, "output: decode json")
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return eris.Wrap(err, "output: encode yaml")
		}
		_, err = w.Write(out)
		return eris.Wrap(err, "output: write yaml")
	case "table", "":
		table(w)
		return nil
	default:
		return eris.Errorf("output: unknown format %q", format)
	}
}

func optString(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func yearRange(yr *solar.YearRange) string {
	if yr == nil {
		return "-"
	}
	return fmt.Sprintf("%d-%d", yr.Min, yr.Max)
}

func formatSummaries(w io.Writer, rows []solar.StateSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tCOUNT\tCAPACITY AC\tCAPACITY DC\tAVG\tAREA\tLATEST")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%.1f\t%.0f\t%s\n",
			r.State, r.InstallationCount, r.TotalCapacityAC, r.TotalCapacityDC,
			r.AvgCapacity, r.TotalArea, optInt(r.LatestYear))
	}
	tw.Flush() //nolint:errcheck
}

func formatStates(w io.Writer, states []solar.StateInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tINSTALLATIONS\tCAPACITY (MW)")
	for _, s := range states {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\n", s.Code, s.Installations, s.TotalCapacity)
	}
	tw.Flush() //nolint:errcheck
}

func formatInstallations(w io.Writer, insts []solar.Installation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE ID\tNAME\tSTATE\tCOUNTY\tYEAR\tCAPACITY AC\tBATTERY")
	for _, in := range insts {
		battery := "no"
		if in.HasBattery {
			battery = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			in.CaseID, optString(in.Name), in.State, in.County,
			optInt(in.Year), optFloat(in.CapacityAC), battery)
	}
	tw.Flush() //nolint:errcheck
}

func formatStateDetail(w io.Writer, code string, d *solar.StateDetail) {
	fmt.Fprintf(w, "State:          %s\n", code)
	fmt.Fprintf(w, "Installations:  %d\n", d.Stats.TotalInstallations)
	fmt.Fprintf(w, "Total capacity: %.1f MW\n", d.Stats.TotalCapacity)
	fmt.Fprintf(w, "Avg capacity:   %.1f MW\n", d.Stats.AverageCapacity)
	fmt.Fprintf(w, "Counties:       %d\n", d.Stats.TotalCounties)
	fmt.Fprintf(w, "Years:          %s\n\n", yearRange(d.Stats.YearRange))
	formatInstallations(w, d.Installations)
}

func formatBreakdown(w io.Writer, b *solar.StateBreakdown) {
	fmt.Fprintf(w, "State:          %s\n", b.State)
	fmt.Fprintf(w, "Installations:  %d\n", b.TotalInstallations)
	fmt.Fprintf(w, "Total capacity: %.1f MW\n\n", b.TotalCapacity)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tINSTALLATIONS\tCAPACITY (MW)")
	for _, y := range b.YearlyProgression {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\n", optInt(y.Year), y.InstallationCount, y.TotalCapacity)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TECHNOLOGY\tINSTALLATIONS\tCAPACITY (MW)")
	for _, t := range b.TechDistribution {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\n", optString(t.Technology), t.Count, t.TotalCapacity)
	}
	tw.Flush() //nolint:errcheck
}

func formatNationwide(w io.Writer, s *solar.NationwideStats) {
	fmt.Fprintf(w, "Installations:  %d\n", s.TotalInstallations)
	fmt.Fprintf(w, "Total capacity: %.1f MW\n", s.TotalCapacityAC)
	fmt.Fprintf(w, "Average size:   %.1f MW\n", s.AverageSize)
	fmt.Fprintf(w, "States:         %d\n", s.StatesCount)
	fmt.Fprintf(w, "Years:          %s\n", yearRange(s.YearRange))
}
