package dataset

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `case_id,p_state,p_county,ylat,xlong,p_name,p_year,p_cap_ac,p_cap_dc,p_tech_pri,p_axis,p_area,p_battery
100,CA,Kern County,35.1,-118.4,Kern Solar,2015,10.0,12.5,PV,single-axis,1000,
101,CA,Kern County,35.2,-118.5,,2020,NA,NA,PV,fixed-tilt,,batteries
102,TX,Pecos County,31.0,-102.9,Pecos One,2011,50,60,PV,single-axis,4000,
oops,TX,Pecos County,31.0,-102.9,Bad Row,2012,1,1,PV,,,
103,,Nowhere,30,-100,No State,2013,1,1,PV,,,
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "uspvdb.csv", sampleCSV)

	res, err := Load(context.Background(), path, Options{TempDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, path, res.Source)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Installations, 3)

	first := res.Installations[0]
	assert.Equal(t, int64(100), first.CaseID)
	require.NotNil(t, first.CapacityAC)
	assert.InDelta(t, 10.0, *first.CapacityAC, 1e-9)
	assert.False(t, first.HasBattery)

	second := res.Installations[1]
	assert.Nil(t, second.Name)
	assert.Nil(t, second.CapacityAC)
	assert.Nil(t, second.Area)
	assert.True(t, second.HasBattery)

	assert.Equal(t, "TX", res.Installations[2].State)
}

func TestLoad_CSVMissingColumns(t *testing.T) {
	path := writeFile(t, "bad.csv", "case_id,p_state\n1,CA\n")

	_, err := Load(context.Background(), path, Options{TempDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns ylat, xlong")
}

func TestLoad_CSVCharset(t *testing.T) {
	content := "case_id,p_state,ylat,xlong,p_name\n1,NM,35,-106,Pe\xf1asco\n"
	path := writeFile(t, "latin.csv", content)

	res, err := Load(context.Background(), path, Options{TempDir: t.TempDir(), Charset: "windows-1252"})
	require.NoError(t, err)
	require.Len(t, res.Installations, 1)
	require.NotNil(t, res.Installations[0].Name)
	assert.Equal(t, "Peñasco", *res.Installations[0].Name)
}

func TestLoad_ZIP(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "uspvdb_csv.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	fw, err := w.Create("uspvdb_v2_0.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	fw, err = w.Create("README.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("USPVDB"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	res, err := Load(context.Background(), zipPath, Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.Len(t, res.Installations, 3)
	assert.Equal(t, 2, res.Failed)
}

func TestLoad_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/uspvdb.csv", r.URL.Path)
		w.Write([]byte(sampleCSV)) //nolint:errcheck
	}))
	defer srv.Close()

	tmp := t.TempDir()
	res, err := Load(context.Background(), srv.URL+"/data/uspvdb.csv", Options{TempDir: tmp})
	require.NoError(t, err)
	assert.Len(t, res.Installations, 3)

	_, err = os.Stat(filepath.Join(tmp, "uspvdb.csv"))
	assert.NoError(t, err)
}

func TestLoad_RemoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL+"/missing.csv", Options{TempDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset: download")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), "", Options{})
	require.Error(t, err)

	_, err = Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)

	path := writeFile(t, "data.json", "{}")
	_, err = Load(context.Background(), path, Options{TempDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported source format")
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://eerscmap.usgs.gov/uspvdb/assets/data/uspvdbCSV.zip"))
	assert.True(t, IsRemote("http://localhost/solar.csv"))
	assert.False(t, IsRemote("solar.csv"))
	assert.False(t, IsRemote("/data/solar.csv"))
}

func TestLoad_Shapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uspvdb.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.NumberField("case_id", 10),
		shp.StringField("p_state", 2),
		shp.StringField("p_county", 40),
		shp.StringField("p_name", 40),
		shp.NumberField("p_year", 4),
		shp.FloatField("p_cap_ac", 12, 3),
	}))

	rows := []struct {
		pt    shp.Point
		id    int
		state string
		name  string
	}{
		{shp.Point{X: -118.4, Y: 35.1}, 200, "CA", "Mojave Flats"},
		{shp.Point{X: -112.0, Y: 33.5}, 201, "AZ", "Gila Bend"},
		{shp.Point{X: -100.0, Y: 30.0}, 202, "", "Stateless"},
	}
	for i, r := range rows {
		pt := r.pt
		w.Write(&pt)
		require.NoError(t, w.WriteAttribute(i, 0, r.id))
		if r.state != "" {
			require.NoError(t, w.WriteAttribute(i, 1, r.state))
		}
		require.NoError(t, w.WriteAttribute(i, 2, "Some County"))
		require.NoError(t, w.WriteAttribute(i, 3, r.name))
		require.NoError(t, w.WriteAttribute(i, 4, 2021))
		require.NoError(t, w.WriteAttribute(i, 5, 12.5))
	}
	w.Close()

	res, err := Load(context.Background(), path, Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Installations, 2)

	got := res.Installations[0]
	assert.Equal(t, int64(200), got.CaseID)
	assert.Equal(t, "CA", got.State)
	assert.Equal(t, "Some County", got.County)
	assert.InDelta(t, 35.1, got.Latitude, 1e-9)
	assert.InDelta(t, -118.4, got.Longitude, 1e-9)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Mojave Flats", *got.Name)
	require.NotNil(t, got.Year)
	assert.Equal(t, 2021, *got.Year)
	require.NotNil(t, got.CapacityAC)
	assert.InDelta(t, 12.5, *got.CapacityAC, 1e-9)

	assert.Equal(t, "AZ", res.Installations[1].State)
}
