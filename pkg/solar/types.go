package solar

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Installation is a single recorded solar installation.
type Installation struct {
	CaseID     int64    `json:"case_id"`
	State      string   `json:"state"`
	County     string   `json:"county"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Name       *string  `json:"name"`
	Year       *int     `json:"year"`
	CapacityAC *float64 `json:"capacity_ac"` // MW
	CapacityDC *float64 `json:"capacity_dc"` // MW
	Technology *string  `json:"technology"`
	AxisType   *string  `json:"axis_type"`
	Area       *float64 `json:"area"` // square meters
	HasBattery bool     `json:"has_battery"`
}

// YearRange is an inclusive [earliest, latest] pair, encoded as a two-element array.
type YearRange struct {
	Min int
	Max int
}

// MarshalJSON encodes the range as [min, max].
func (y YearRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{y.Min, y.Max})
}

// UnmarshalJSON decodes a [min, max] array.
func (y *YearRange) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return eris.Wrap(err, "solar: decode year range")
	}
	if len(pair) != 2 {
		return eris.Errorf("solar: year range must have 2 elements, got %d", len(pair))
	}
	y.Min, y.Max = pair[0], pair[1]
	return nil
}

// StateStats aggregates the installations of one state.
type StateStats struct {
	TotalInstallations int        `json:"totalInstallations"`
	TotalCapacity      float64    `json:"totalCapacity"`
	AverageCapacity    float64    `json:"averageCapacity"`
	TotalCounties      int        `json:"totalCounties"`
	YearRange          *YearRange `json:"yearRange"`
}

// StateDetail is the payload of GET /api/state/{code}.
type StateDetail struct {
	Stats         StateStats     `json:"stats"`
	Installations []Installation `json:"installations"`
}

// YearlyCapacity is the installation count and AC capacity added in one year.
// Year is nil for installations without a recorded year.
type YearlyCapacity struct {
	Year              *int    `json:"year"`
	TotalCapacity     float64 `json:"total_capacity"`
	InstallationCount int     `json:"installation_count"`
}

// TechShare is the installation count and AC capacity of one primary
// technology. Technology is nil for installations without one.
type TechShare struct {
	Technology    *string `json:"tech_primary"`
	Count         int     `json:"count"`
	TotalCapacity float64 `json:"total_capacity"`
}

// StateBreakdown is the payload of GET /api/state/{code}/breakdown.
type StateBreakdown struct {
	State              string           `json:"state"`
	TotalCapacity      float64          `json:"total_capacity"`
	TotalInstallations int              `json:"total_installations"`
	YearlyProgression  []YearlyCapacity `json:"yearly_progression"`
	TechDistribution   []TechShare      `json:"tech_distribution"`
}

// StateInfo is a per-state summary row.
type StateInfo struct {
	Code          string  `json:"code"`
	Installations int     `json:"installations"`
	TotalCapacity float64 `json:"totalCapacity"`
}

// StatesResponse is the payload of GET /api/states.
type StatesResponse struct {
	States []StateInfo `json:"states"`
}

// StateSummary is one row of GET /api/solar/stats/.
type StateSummary struct {
	State             string  `json:"state"`
	TotalCapacityAC   float64 `json:"total_capacity_ac"`
	TotalCapacityDC   float64 `json:"total_capacity_dc"`
	InstallationCount int     `json:"installation_count"`
	AvgCapacity       float64 `json:"avg_capacity"`
	TotalArea         float64 `json:"total_area"`
	LatestYear        *int    `json:"latest_year"`
}

// NationwideStats is the payload of GET /stats.
type NationwideStats struct {
	TotalInstallations int        `json:"total_installations"`
	TotalCapacityAC    float64    `json:"total_capacity_ac"`
	AverageSize        float64    `json:"average_size"`
	StatesCount        int        `json:"states_count"`
	YearRange          *YearRange `json:"year_range"`
}

// InstallationQuery filters GET /installations. Zero values are not sent.
type InstallationQuery struct {
	State       string  `json:"state,omitempty"`
	Year        int     `json:"year,omitempty"`
	MinCapacity float64 `json:"min_capacity,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	Offset      int     `json:"offset,omitempty"`
}

// errorBody is the shape the API uses to report a failure.
type errorBody struct {
	Error string `json:"error"`
}
