package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/pkg/solar"
)

// Source column names.
const (
	colCaseID     = "case_id"
	colState      = "p_state"
	colCounty     = "p_county"
	colLatitude   = "ylat"
	colLongitude  = "xlong"
	colName       = "p_name"
	colYear       = "p_year"
	colCapacityAC = "p_cap_ac"
	colCapacityDC = "p_cap_dc"
	colTechnology = "p_tech_pri"
	colAxis       = "p_axis"
	colArea       = "p_area"
	colBattery    = "p_battery"
)

// requiredColumns must be present in a CSV header.
var requiredColumns = []string{colCaseID, colState, colLatitude, colLongitude}

// getter returns the raw value of a named column, or "" when absent.
type getter func(col string) string

// coordFunc supplies lon/lat when the coordinate columns are empty.
type coordFunc func() (lon, lat float64, ok bool)

// isNull reports whether a raw value should be treated as missing.
func isNull(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "na") || strings.EqualFold(v, "nan")
}

func optString(v string) *string {
	if isNull(v) {
		return nil
	}
	s := strings.TrimSpace(v)
	return &s
}

func optFloat(v string) *float64 {
	if isNull(v) {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// optInt parses integers, accepting integral floats such as "2015.0".
func optInt(v string) *int {
	f := optFloat(v)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}
	i := int(*f)
	return &i
}

// parseInstallation builds an Installation from one source record. It fails
// when the case id, state or coordinates are missing or malformed.
func parseInstallation(get getter, coords coordFunc) (solar.Installation, error) {
	var in solar.Installation

	id := optFloat(get(colCaseID))
	if id == nil || *id != math.Trunc(*id) {
		return in, eris.Errorf("dataset: invalid case_id %q", get(colCaseID))
	}
	in.CaseID = int64(*id)

	state := strings.ToUpper(strings.TrimSpace(get(colState)))
	if isNull(state) {
		return in, eris.Errorf("dataset: missing state for case %d", in.CaseID)
	}
	in.State = state

	lat, lon := optFloat(get(colLatitude)), optFloat(get(colLongitude))
	switch {
	case lat != nil && lon != nil:
		in.Latitude, in.Longitude = *lat, *lon
	case coords != nil:
		x, y, ok := coords()
		if !ok {
			return in, eris.Errorf("dataset: missing coordinates for case %d", in.CaseID)
		}
		in.Latitude, in.Longitude = y, x
	default:
		return in, eris.Errorf("dataset: invalid coordinates %q,%q for case %d",
			get(colLatitude), get(colLongitude), in.CaseID)
	}

	if !isNull(get(colCounty)) {
		in.County = strings.TrimSpace(get(colCounty))
	}
	in.Name = optString(get(colName))
	in.Year = optInt(get(colYear))
	in.CapacityAC = optFloat(get(colCapacityAC))
	in.CapacityDC = optFloat(get(colCapacityDC))
	in.Technology = optString(get(colTechnology))
	in.AxisType = optString(get(colAxis))
	in.Area = optFloat(get(colArea))
	if b := get(colBattery); !isNull(b) {
		in.HasBattery = strings.Contains(strings.ToLower(b), "batteries")
	}

	return in, nil
}

// columnIndex maps lower-cased header names to their positions.
type columnIndex map[string]int

func newColumnIndex(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func (c columnIndex) missing(cols []string) []string {
	var out []string
	for _, col := range cols {
		if _, ok := c[col]; !ok {
			out = append(out, col)
		}
	}
	return out
}

// lookup returns a getter over row.
func (c columnIndex) lookup(row []string) getter {
	return func(col string) string {
		i, ok := c[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
}
