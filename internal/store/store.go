// Package store persists installations and import run history.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/sells-group/solar-cli/pkg/solar"
)

// Filter specifies criteria for listing installations. A non-positive Limit
// means no limit.
type Filter struct {
	State       string  `json:"state,omitempty"`
	Year        int     `json:"year,omitempty"`
	MinCapacity float64 `json:"min_capacity,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	Offset      int     `json:"offset,omitempty"`
}

// ImportStatus is the lifecycle state of an import run.
type ImportStatus string

const (
	ImportRunning  ImportStatus = "running"
	ImportComplete ImportStatus = "complete"
	ImportFailed   ImportStatus = "failed"
)

// ImportRun records one execution of the dataset importer.
type ImportRun struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	ETag       string       `json:"etag,omitempty"`
	Status     ImportStatus `json:"status"`
	Imported   int          `json:"imported"`
	Failed     int          `json:"failed"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Store defines the persistence interface for installation data.
type Store interface {
	// Installations
	ReplaceInstallations(ctx context.Context, insts []solar.Installation) (int64, error)
	ListInstallations(ctx context.Context, filter Filter) ([]solar.Installation, error)

	// Import runs
	CreateImport(ctx context.Context, source, etag string) (*ImportRun, error)
	CompleteImport(ctx context.Context, id string, imported, failed int, importErr error) error
	LatestImport(ctx context.Context) (*ImportRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// installationColumns is the column order used for inserts, COPY and scans.
var installationColumns = []string{
	"case_id", "state", "county", "latitude", "longitude", "name", "year",
	"capacity_ac", "capacity_dc", "technology", "axis_type", "area", "has_battery",
}

func installationRow(in solar.Installation) []any {
	return []any{
		in.CaseID, in.State, in.County, in.Latitude, in.Longitude, in.Name, in.Year,
		in.CapacityAC, in.CapacityDC, in.Technology, in.AxisType, in.Area, in.HasBattery,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanInstallation(row scannable) (solar.Installation, error) {
	var in solar.Installation
	err := row.Scan(
		&in.CaseID, &in.State, &in.County, &in.Latitude, &in.Longitude, &in.Name, &in.Year,
		&in.CapacityAC, &in.CapacityDC, &in.Technology, &in.AxisType, &in.Area, &in.HasBattery,
	)
	return in, err
}

// dedupe orders installations by case id, keeping the last record for a
// repeated id.
func dedupe(insts []solar.Installation) []solar.Installation {
	byID := make(map[int64]int, len(insts))
	out := make([]solar.Installation, 0, len(insts))
	for _, in := range insts {
		if i, ok := byID[in.CaseID]; ok {
			out[i] = in
			continue
		}
		byID[in.CaseID] = len(out)
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

func importStatus(err error) ImportStatus {
	if err != nil {
		return ImportFailed
	}
	return ImportComplete
}
