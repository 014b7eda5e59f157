package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/db"
	"github.com/sells-group/solar-cli/pkg/solar"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS installations (
	case_id     BIGINT PRIMARY KEY,
	state       TEXT NOT NULL,
	county      TEXT NOT NULL DEFAULT '',
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	name        TEXT,
	year        INTEGER,
	capacity_ac DOUBLE PRECISION,
	capacity_dc DOUBLE PRECISION,
	technology  TEXT,
	axis_type   TEXT,
	area        DOUBLE PRECISION,
	has_battery BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_installations_state ON installations(state);
CREATE INDEX IF NOT EXISTS idx_installations_year ON installations(year);
CREATE INDEX IF NOT EXISTS idx_installations_capacity_ac ON installations(capacity_ac);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source      TEXT NOT NULL,
	etag        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	imported    INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_import_runs_started_at ON import_runs(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// ReplaceInstallations deletes every installation and COPYs insts in a single
// transaction, so readers never see a partial table.
func (s *PostgresStore) ReplaceInstallations(ctx context.Context, insts []solar.Installation) (int64, error) {
	deduped := dedupe(insts)
	rows := make([][]any, len(deduped))
	for i, in := range deduped {
		rows[i] = installationRow(in)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin tx")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM installations`)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, eris.Wrap(err, "postgres: clear installations")
	}

	n, err := db.CopyFrom(ctx, tx, "installations", installationColumns, rows)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, eris.Wrap(err, "postgres: copy installations")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit installations")
	}

	zap.L().Debug("postgres: installations replaced",
		zap.Int64("deleted", tag.RowsAffected()),
		zap.Int64("inserted", n),
	)
	return n, nil
}

func (s *PostgresStore) ListInstallations(ctx context.Context, filter Filter) ([]solar.Installation, error) {
	query, args := postgresDialect.listQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list installations")
	}
	defer rows.Close()

	out := []solar.Installation{}
	for rows.Next() {
		in, err := scanInstallation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan installation")
		}
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list installations iterate")
}

func (s *PostgresStore) CreateImport(ctx context.Context, source, etag string) (*ImportRun, error) {
	run := &ImportRun{
		ID:        uuid.New().String(),
		Source:    source,
		ETag:      etag,
		Status:    ImportRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, source, etag, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Source, run.ETag, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert import run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteImport(ctx context.Context, id string, imported, failed int, importErr error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE import_runs SET status = $1, imported = $2, failed = $3, error = $4, finished_at = $5 WHERE id = $6`,
		string(importStatus(importErr)), imported, failed, errorText(importErr), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete import run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("import run not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) LatestImport(ctx context.Context) (*ImportRun, error) {
	var (
		run     ImportRun
		status  string
		errText *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, source, etag, status, imported, failed, error, started_at, finished_at
		 FROM import_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&run.ID, &run.Source, &run.ETag, &status, &run.Imported, &run.Failed,
		&errText, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest import run")
	}

	run.Status = ImportStatus(status)
	if errText != nil {
		run.Error = *errText
	}
	return &run, nil
}
