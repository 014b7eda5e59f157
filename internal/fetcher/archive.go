package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// shapefileParts are the sidecar extensions extracted with a .shp member.
var shapefileParts = map[string]bool{
	".shp": true, ".shx": true, ".dbf": true, ".prj": true, ".cpg": true,
}

// ExtractDataset unpacks the dataset member of a USPVDB archive into dir and
// returns its path. A CSV member wins; otherwise the shapefile is extracted
// together with its sidecar files. Members are written flat into dir.
func ExtractDataset(zipPath, dir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var csvs, shps []*zip.File
	for _, f := range r.File {
		if skipMember(f) {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".csv":
			csvs = append(csvs, f)
		case ".shp":
			shps = append(shps, f)
		}
	}

	var members []*zip.File
	switch {
	case len(csvs) == 1:
		members = csvs
	case len(csvs) > 1:
		return "", eris.Errorf("fetcher: archive %s has %d csv files", zipPath, len(csvs))
	case len(shps) == 1:
		members = shapefileMembers(r.File, shps[0])
	case len(shps) > 1:
		return "", eris.Errorf("fetcher: archive %s has %d shapefiles", zipPath, len(shps))
	default:
		return "", eris.Errorf("fetcher: archive %s has no csv or shapefile", zipPath)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "fetcher: create %s", dir)
	}
	for _, m := range members {
		if err := extractMember(m, dir); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, path.Base(members[0].Name)), nil
}

// skipMember ignores directories, macOS resource forks and hidden files.
func skipMember(f *zip.File) bool {
	if f.FileInfo().IsDir() || strings.Contains(f.Name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(f.Name), ".")
}

// shapefileMembers returns shp followed by the sidecars that share its stem.
func shapefileMembers(files []*zip.File, shp *zip.File) []*zip.File {
	stem := strings.TrimSuffix(shp.Name, path.Ext(shp.Name))
	out := []*zip.File{shp}
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Name))
		if f == shp || !shapefileParts[ext] || skipMember(f) {
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(f.Name, path.Ext(f.Name)), stem) {
			out = append(out, f)
		}
	}
	return out
}

func extractMember(f *zip.File, dir string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "fetcher: open member %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	dest := filepath.Join(dir, path.Base(f.Name))
	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "fetcher: create %s", dest)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "fetcher: extract %s", f.Name)
	}
	return eris.Wrapf(out.Close(), "fetcher: close %s", dest)
}
