package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArchive creates a zip with the given member names and contents.
func writeArchive(t *testing.T, members map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uspvdb.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(members[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExtractDataset_PrefersCSV(t *testing.T) {
	zipPath := writeArchive(t, map[string]string{
		"uspvdb_v2_0/uspvdb_v2_0.csv": datasetCSV,
		"uspvdb_v2_0/uspvdb_v2_0.shp": "shp",
		"uspvdb_v2_0/uspvdb_v2_0.dbf": "dbf",
		"uspvdb_v2_0/README.txt":      "readme",
	})
	dir := filepath.Join(t.TempDir(), "out")

	got, err := ExtractDataset(zipPath, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "uspvdb_v2_0.csv"), got)
	assert.Equal(t, []string{"uspvdb_v2_0.csv"}, listDir(t, dir))

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, datasetCSV, string(data))
}

func TestExtractDataset_ShapefileWithSidecars(t *testing.T) {
	zipPath := writeArchive(t, map[string]string{
		"shp/uspvdb_v2_0.shp":  "shp",
		"shp/uspvdb_v2_0.shx":  "shx",
		"shp/uspvdb_v2_0.DBF":  "dbf",
		"shp/uspvdb_v2_0.prj":  "prj",
		"shp/other_layer.dbf":  "other",
		"shp/uspvdb_v2_0.xml":  "metadata",
		"__MACOSX/shp/._x.csv": "fork",
	})
	dir := t.TempDir()

	got, err := ExtractDataset(zipPath, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "uspvdb_v2_0.shp"), got)
	assert.ElementsMatch(t,
		[]string{"uspvdb_v2_0.shp", "uspvdb_v2_0.shx", "uspvdb_v2_0.DBF", "uspvdb_v2_0.prj"},
		listDir(t, dir))
}

func TestExtractDataset_IgnoresHiddenMembers(t *testing.T) {
	zipPath := writeArchive(t, map[string]string{
		"__MACOSX/._uspvdb.csv": "fork",
		".hidden.csv":           "hidden",
		"data/uspvdb.csv":       datasetCSV,
	})

	got, err := ExtractDataset(zipPath, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "uspvdb.csv", filepath.Base(got))
}

func TestExtractDataset_Errors(t *testing.T) {
	tests := []struct {
		name    string
		members map[string]string
		want    string
	}{
		{"no dataset", map[string]string{"README.txt": "x"}, "has no csv or shapefile"},
		{"two csv files", map[string]string{"a.csv": "x", "b.csv": "y"}, "has 2 csv files"},
		{"two shapefiles", map[string]string{"a.shp": "x", "b.shp": "y"}, "has 2 shapefiles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractDataset(writeArchive(t, tt.members), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExtractDataset_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uspvdb.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractDataset(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetcher: open archive")
}
