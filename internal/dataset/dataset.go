// Package dataset loads USPVDB installation records from CSV, zipped CSV or
// shapefile sources, local or remote.
package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/fetcher"
	"github.com/sells-group/solar-cli/pkg/solar"
)

// maxLoggedFailures caps the number of rejected rows logged in detail.
const maxLoggedFailures = 5

// Options configures a dataset load.
type Options struct {
	Charset string          // CSV source encoding; empty means UTF-8
	TempDir string          // download and extraction directory (default /tmp/solar)
	Fetcher fetcher.Fetcher // used for http(s) sources; defaults to an HTTPFetcher
}

// Result is the outcome of a load.
type Result struct {
	Source        string
	Installations []solar.Installation
	Failed        int
	Duration      time.Duration
}

// Load reads every installation from source. Rows that cannot be parsed are
// counted in Result.Failed and skipped. A source that yields no installation
// at all is an error, so it can never replace a populated store.
func Load(ctx context.Context, source string, opts Options) (*Result, error) {
	if source == "" {
		return nil, eris.New("dataset: source is required")
	}
	if opts.TempDir == "" {
		opts.TempDir = "/tmp/solar"
	}

	log := zap.L().With(
		zap.String("component", "dataset.loader"),
		zap.String("source", source),
	)
	start := time.Now()

	local, err := resolve(ctx, source, opts)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(local), ".zip") {
		local, err = unzip(local, opts.TempDir)
		if err != nil {
			return nil, err
		}
		log.Info("archive extracted", zap.String("path", local))
	}

	var res *Result
	switch strings.ToLower(filepath.Ext(local)) {
	case ".csv":
		res, err = loadCSV(ctx, local, opts.Charset)
	case ".shp":
		res, err = loadShapefile(local)
	default:
		return nil, eris.Errorf("dataset: unsupported source format %q", filepath.Ext(local))
	}
	if err != nil {
		return nil, err
	}

	if len(res.Installations) == 0 {
		return nil, eris.Errorf("dataset: no valid installations in %s (%d rows rejected)", source, res.Failed)
	}

	res.Source = source
	res.Duration = time.Since(start)

	log.Info("dataset loaded",
		zap.Int("installations", len(res.Installations)),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// resolve returns a local path for source, downloading it first when remote.
func resolve(ctx context.Context, source string, opts Options) (string, error) {
	if !IsRemote(source) {
		if _, err := os.Stat(source); err != nil {
			return "", eris.Wrapf(err, "dataset: stat %s", source)
		}
		return source, nil
	}

	f := opts.Fetcher
	if f == nil {
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	dl, err := f.Fetch(ctx, source, opts.TempDir)
	if err != nil {
		return "", eris.Wrapf(err, "dataset: download %s", source)
	}

	zap.L().Info("dataset downloaded",
		zap.String("path", dl.Path),
		zap.Int64("bytes", dl.Bytes),
		zap.String("etag", dl.ETag),
	)
	return dl.Path, nil
}

// unzip extracts the dataset member of the archive next to it.
func unzip(zipPath, tempDir string) (string, error) {
	destDir := filepath.Join(tempDir, strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath)))
	p, err := fetcher.ExtractDataset(zipPath, destDir)
	if err != nil {
		return "", eris.Wrap(err, "dataset: extract archive")
	}
	return p, nil
}
