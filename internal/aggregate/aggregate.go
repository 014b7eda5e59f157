// Package aggregate computes state and nationwide statistics over installations.
package aggregate

import (
	"sort"
	"strings"

	"github.com/sells-group/solar-cli/pkg/solar"
)

// YearRange returns the [min, max] installation year, or nil when no
// installation has a year.
func YearRange(insts []solar.Installation) *solar.YearRange {
	var yr *solar.YearRange
	for _, in := range insts {
		if in.Year == nil {
			continue
		}
		y := *in.Year
		if yr == nil {
			yr = &solar.YearRange{Min: y, Max: y}
			continue
		}
		if y < yr.Min {
			yr.Min = y
		}
		if y > yr.Max {
			yr.Max = y
		}
	}
	return yr
}

// capacity returns the sum and count of non-null AC capacities.
func capacity(insts []solar.Installation) (sum float64, n int) {
	for _, in := range insts {
		if in.CapacityAC != nil {
			sum += *in.CapacityAC
			n++
		}
	}
	return sum, n
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// StateStats aggregates the installations of a single state. Null capacities
// are skipped in both the sum and the average.
func StateStats(insts []solar.Installation) solar.StateStats {
	sum, n := capacity(insts)

	counties := make(map[string]struct{})
	for _, in := range insts {
		counties[in.County] = struct{}{}
	}

	return solar.StateStats{
		TotalInstallations: len(insts),
		TotalCapacity:      sum,
		AverageCapacity:    mean(sum, n),
		TotalCounties:      len(counties),
		YearRange:          YearRange(insts),
	}
}

// Nationwide aggregates installations across every state.
func Nationwide(insts []solar.Installation) solar.NationwideStats {
	sum, n := capacity(insts)

	states := make(map[string]struct{})
	for _, in := range insts {
		states[in.State] = struct{}{}
	}

	return solar.NationwideStats{
		TotalInstallations: len(insts),
		TotalCapacityAC:    sum,
		AverageSize:        mean(sum, n),
		StatesCount:        len(states),
		YearRange:          YearRange(insts),
	}
}

// ByState groups installations by upper-cased state code.
func ByState(insts []solar.Installation) map[string][]solar.Installation {
	out := make(map[string][]solar.Installation)
	for _, in := range insts {
		code := strings.ToUpper(in.State)
		out[code] = append(out[code], in)
	}
	return out
}

func sortedKeys(m map[string][]solar.Installation) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StateInfos returns one summary row per state, ordered by code.
func StateInfos(insts []solar.Installation) []solar.StateInfo {
	groups := ByState(insts)
	out := make([]solar.StateInfo, 0, len(groups))
	for _, code := range sortedKeys(groups) {
		sum, _ := capacity(groups[code])
		out = append(out, solar.StateInfo{
			Code:          code,
			Installations: len(groups[code]),
			TotalCapacity: sum,
		})
	}
	return out
}

// Summaries returns the capacity summary rows served by /api/solar/stats/,
// ordered by state.
func Summaries(insts []solar.Installation) []solar.StateSummary {
	groups := ByState(insts)
	out := make([]solar.StateSummary, 0, len(groups))
	for _, code := range sortedKeys(groups) {
		g := groups[code]
		ac, n := capacity(g)

		row := solar.StateSummary{
			State:             code,
			TotalCapacityAC:   ac,
			InstallationCount: len(g),
			AvgCapacity:       mean(ac, n),
		}
		for _, in := range g {
			if in.CapacityDC != nil {
				row.TotalCapacityDC += *in.CapacityDC
			}
			if in.Area != nil {
				row.TotalArea += *in.Area
			}
		}
		if yr := YearRange(g); yr != nil {
			latest := yr.Max
			row.LatestYear = &latest
		}
		out = append(out, row)
	}
	return out
}

// YearlyProgression groups installations by year, oldest first. Installations
// without a year form a final group with a nil Year.
func YearlyProgression(insts []solar.Installation) []solar.YearlyCapacity {
	byYear := make(map[int]*solar.YearlyCapacity)
	var unknown *solar.YearlyCapacity
	for _, in := range insts {
		var row *solar.YearlyCapacity
		if in.Year == nil {
			if unknown == nil {
				unknown = &solar.YearlyCapacity{}
			}
			row = unknown
		} else {
			row = byYear[*in.Year]
			if row == nil {
				y := *in.Year
				row = &solar.YearlyCapacity{Year: &y}
				byYear[y] = row
			}
		}
		row.InstallationCount++
		if in.CapacityAC != nil {
			row.TotalCapacity += *in.CapacityAC
		}
	}

	out := make([]solar.YearlyCapacity, 0, len(byYear)+1)
	for _, row := range byYear {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].Year < *out[j].Year })
	if unknown != nil {
		out = append(out, *unknown)
	}
	return out
}

// TechDistribution groups installations by primary technology, most common
// first. Ties are ordered by technology name with the unknown group last.
func TechDistribution(insts []solar.Installation) []solar.TechShare {
	byTech := make(map[string]*solar.TechShare)
	var unknown *solar.TechShare
	for _, in := range insts {
		var row *solar.TechShare
		if in.Technology == nil {
			if unknown == nil {
				unknown = &solar.TechShare{}
			}
			row = unknown
		} else {
			row = byTech[*in.Technology]
			if row == nil {
				tech := *in.Technology
				row = &solar.TechShare{Technology: &tech}
				byTech[tech] = row
			}
		}
		row.Count++
		if in.CapacityAC != nil {
			row.TotalCapacity += *in.CapacityAC
		}
	}

	out := make([]solar.TechShare, 0, len(byTech)+1)
	for _, row := range byTech {
		out = append(out, *row)
	}
	if unknown != nil {
		out = append(out, *unknown)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Technology == nil || b.Technology == nil {
			return b.Technology == nil && a.Technology != nil
		}
		return *a.Technology < *b.Technology
	})
	return out
}

// Breakdown builds the yearly and technology breakdown of one state.
func Breakdown(code string, insts []solar.Installation) solar.StateBreakdown {
	sum, _ := capacity(insts)
	return solar.StateBreakdown{
		State:              strings.ToUpper(strings.TrimSpace(code)),
		TotalCapacity:      sum,
		TotalInstallations: len(insts),
		YearlyProgression:  YearlyProgression(insts),
		TechDistribution:   TechDistribution(insts),
	}
}

// SortByYearDesc orders installations newest first. Installations without a
// year sort as year 0, so they end up last.
func SortByYearDesc(insts []solar.Installation) {
	year := func(in solar.Installation) int {
		if in.Year == nil {
			return 0
		}
		return *in.Year
	}
	sort.SliceStable(insts, func(i, j int) bool {
		return year(insts[i]) > year(insts[j])
	})
}

// SortByCapacityDesc orders state rows by total capacity, largest first.
func SortByCapacityDesc(states []solar.StateInfo) {
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].TotalCapacity > states[j].TotalCapacity
	})
}

// Filter applies the query's state, year and minimum capacity predicates and
// then its offset and limit. A non-positive limit means no limit.
func Filter(insts []solar.Installation, q solar.InstallationQuery) []solar.Installation {
	state := strings.ToUpper(strings.TrimSpace(q.State))

	var out []solar.Installation
	for _, in := range insts {
		if state != "" && strings.ToUpper(in.State) != state {
			continue
		}
		if q.Year != 0 && (in.Year == nil || *in.Year != q.Year) {
			continue
		}
		if q.MinCapacity > 0 && (in.CapacityAC == nil || *in.CapacityAC < q.MinCapacity) {
			continue
		}
		out = append(out, in)
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []solar.Installation{}
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []solar.Installation{}
	}
	return out
}
