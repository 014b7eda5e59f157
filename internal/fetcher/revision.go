package fetcher

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-cli/internal/store"
)

// Change compares the revision a remote source serves now with the last
// import run.
type Change struct {
	ETag      string // empty when the server sends no ETag
	Unchanged bool
}

// DetectChange looks up the current revision of source and compares it with
// last, which may be nil.
func DetectChange(ctx context.Context, f Fetcher, source string, last *store.ImportRun) (Change, error) {
	etag, err := f.Revision(ctx, source)
	if err != nil {
		return Change{}, eris.Wrapf(err, "fetcher: revision of %s", source)
	}
	return Change{ETag: etag, Unchanged: sameRevision(last, source, etag)}, nil
}

// sameRevision reports whether last completed from source at etag. A source
// without an ETag always counts as changed.
func sameRevision(last *store.ImportRun, source, etag string) bool {
	return etag != "" &&
		last != nil &&
		last.Status == store.ImportComplete &&
		last.Source == source &&
		last.ETag == etag
}
