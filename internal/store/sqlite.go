package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/solar-cli/pkg/solar"
)

// sqliteBatchSize is the number of installations per multi-row INSERT.
const sqliteBatchSize = 1000

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS installations (
	case_id     INTEGER PRIMARY KEY,
	state       TEXT NOT NULL,
	county      TEXT NOT NULL DEFAULT '',
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	name        TEXT,
	year        INTEGER,
	capacity_ac REAL,
	capacity_dc REAL,
	technology  TEXT,
	axis_type   TEXT,
	area        REAL,
	has_battery INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_installations_state ON installations(state);
CREATE INDEX IF NOT EXISTS idx_installations_year ON installations(year);
CREATE INDEX IF NOT EXISTS idx_installations_capacity_ac ON installations(capacity_ac);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	etag        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'running',
	imported    INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_import_runs_started_at ON import_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceInstallations swaps the whole installation table for insts in one
// transaction, inserting in batches.
func (s *SQLiteStore) ReplaceInstallations(ctx context.Context, insts []solar.Installation) (int64, error) {
	rows := dedupe(insts)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM installations`); err != nil {
		_ = tx.Rollback()
		return 0, eris.Wrap(err, "sqlite: clear installations")
	}

	var n int64
	for start := 0; start < len(rows); start += sqliteBatchSize {
		end := min(start+sqliteBatchSize, len(rows))
		batch := rows[start:end]

		args := make([]any, 0, len(batch)*len(installationColumns))
		for _, in := range batch {
			args = append(args, installationRow(in)...)
		}
		res, err := tx.ExecContext(ctx, sqliteDialect.insertQuery(len(batch)), args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, eris.Wrapf(err, "sqlite: insert installations batch at %d", start)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		n += affected

		zap.L().Debug("sqlite: inserted installation batch",
			zap.Int("start", start),
			zap.Int("size", len(batch)),
		)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit installations")
	}
	return n, nil
}

func (s *SQLiteStore) ListInstallations(ctx context.Context, filter Filter) ([]solar.Installation, error) {
	query, args := sqliteDialect.listQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list installations")
	}
	defer rows.Close()

	out := []solar.Installation{}
	for rows.Next() {
		in, err := scanInstallation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan installation")
		}
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list installations iterate")
}

func (s *SQLiteStore) CreateImport(ctx context.Context, source, etag string) (*ImportRun, error) {
	run := &ImportRun{
		ID:        uuid.New().String(),
		Source:    source,
		ETag:      etag,
		Status:    ImportRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, etag, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.ETag, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert import run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteImport(ctx context.Context, id string, imported, failed int, importErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, imported = ?, failed = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(importStatus(importErr)), imported, failed, errorText(importErr), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete import run %s", id)
	}
	return checkRowsAffected(res, "import run", id)
}

func (s *SQLiteStore) LatestImport(ctx context.Context) (*ImportRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, etag, status, imported, failed, error, started_at, finished_at
		 FROM import_runs ORDER BY rowid DESC LIMIT 1`,
	)

	var (
		run      ImportRun
		errText  sql.NullString
		finished sql.NullTime
	)
	err := row.Scan(&run.ID, &run.Source, &run.ETag, &run.Status, &run.Imported, &run.Failed,
		&errText, &run.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest import run")
	}

	run.Error = errText.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
