package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-cli/internal/config"
	"github.com/sells-group/solar-cli/internal/server"
	"github.com/sells-group/solar-cli/internal/store"
	"github.com/sells-group/solar-cli/pkg/solar"
)

const testCSV = `case_id,p_state,p_county,ylat,xlong,p_name,p_year,p_cap_ac,p_cap_dc,p_tech_pri,p_axis,p_area,p_battery
1,CA,Kern County,35.1,-118.4,Kern Solar,2015,10,12,PV,single-axis,1000,
2,CA,Kern County,35.2,-118.5,Rosamond,2020,30,36,PV,fixed-tilt,3000,batteries
3,TX,Pecos County,31.0,-102.9,Pecos One,2011,50,60,PV,single-axis,5000,
bad,TX,Pecos County,31.0,-102.9,Broken,2012,1,1,PV,,,
`

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func apiFixtures() []solar.Installation {
	return []solar.Installation{
		{CaseID: 1, State: "CA", County: "Kern County", Latitude: 35.1, Longitude: -118.4, Name: strPtr("Kern Solar"), Year: intPtr(2015), CapacityAC: floatPtr(10)},
		{CaseID: 2, State: "CA", County: "Kern County", Latitude: 35.2, Longitude: -118.5, Name: strPtr("Rosamond"), Year: intPtr(2020), CapacityAC: floatPtr(30), HasBattery: true},
		{CaseID: 3, State: "TX", County: "Pecos County", Latitude: 31.0, Longitude: -102.9, Name: strPtr("Pecos One"), Year: intPtr(2011), CapacityAC: floatPtr(50)},
		{CaseID: 4, State: "NV", County: "Clark County", Latitude: 36.2, Longitude: -115.1, Year: intPtr(2018), CapacityAC: floatPtr(100)},
	}
}

// setupConfig installs a test config and resets command globals afterwards.
func setupConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg = &config.Config{
		API:     config.APIConfig{BaseURL: solar.DefaultBaseURL, TimeoutSecs: 5},
		Server:  config.ServerConfig{Port: 8000, AllowedOrigins: []string{"http://localhost:5173"}},
		Store:   config.StoreConfig{Driver: "memory"},
		Dataset: config.DatasetConfig{Source: "solar.csv", TempDir: t.TempDir()},
		Log:     config.LogConfig{Level: "info", Format: "json"},
	}
	t.Cleanup(func() {
		outputFormat = "table"
		statesSort = "code"
		installationsQuery = solar.InstallationQuery{}
		importSource, importForce = "", false
		exportFormat, exportOut, exportState = "xlsx", "", ""
		servePort = 0
	})
	return cfg
}

// startAPI serves apiFixtures from an in-process API and points the config at it.
func startAPI(t *testing.T) {
	t.Helper()
	st := store.NewMemory()
	_, err := st.ReplaceInstallations(context.Background(), apiFixtures())
	require.NoError(t, err)

	ts := httptest.NewServer(server.New(st, server.Options{}))
	t.Cleanup(ts.Close)
	cfg.API.BaseURL = ts.URL
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solar.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))
	return path
}

// execute runs cmd's RunE and returns what it wrote.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())
	t.Cleanup(func() { cmd.SetOut(nil) })

	err := cmd.RunE(cmd, args)
	return buf.String(), err
}
