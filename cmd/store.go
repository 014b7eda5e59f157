package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/dataset"
	"github.com/sells-group/solar-cli/internal/fetcher"
	"github.com/sells-group/solar-cli/internal/store"
	"github.com/sells-group/solar-cli/internal/viewstate"
	"github.com/sells-group/solar-cli/pkg/solar"
)

func newFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory", "":
		return store.NewMemory(), nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "solar.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadDataset reads the configured dataset source.
func loadDataset(ctx context.Context, source string) (*dataset.Result, error) {
	return dataset.Load(ctx, source, dataset.Options{
		Charset: cfg.Dataset.Charset,
		TempDir: cfg.Dataset.TempDir,
		Fetcher: newFetcher(),
	})
}

// populate loads the dataset into st and records the run.
func populate(ctx context.Context, st store.Store, source, etag string) (*dataset.Result, error) {
	run, err := st.CreateImport(ctx, source, etag)
	if err != nil {
		return nil, err
	}

	res, err := loadDataset(ctx, source)
	if err != nil {
		_ = st.CompleteImport(ctx, run.ID, 0, 0, err)
		return nil, err
	}

	n, err := st.ReplaceInstallations(ctx, res.Installations)
	if err != nil {
		_ = st.CompleteImport(ctx, run.ID, 0, res.Failed, err)
		return nil, err
	}

	if err := st.CompleteImport(ctx, run.ID, int(n), res.Failed, nil); err != nil {
		return nil, err
	}

	zap.L().Info("installations imported",
		zap.String("source", source),
		zap.String("import_id", run.ID),
		zap.Int64("imported", n),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// newViewStore validates the API settings and builds a viewstate.Store over
// the configured API.
func newViewStore() (*viewstate.Store, error) {
	if err := cfg.Validate("client"); err != nil {
		return nil, err
	}
	client := solar.NewClient(
		solar.WithBaseURL(cfg.API.BaseURL),
		solar.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.API.TimeoutSecs) * time.Second}),
		solar.WithRateLimit(cfg.API.RateLimit),
	)
	return viewstate.New(client), nil
}

// fetchError turns a failed fetch into the message recorded by the store.
func fetchError(vs *viewstate.Store, err error) error {
	if msg := vs.Snapshot().Err; msg != "" {
		return eris.New(msg)
	}
	return err
}
