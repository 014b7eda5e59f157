package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-cli/pkg/solar"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_ReplaceMultipleBatches(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	insts := make([]solar.Installation, 0, sqliteBatchSize*2+5)
	for i := range sqliteBatchSize*2 + 5 {
		insts = append(insts, solar.Installation{
			CaseID:     int64(i + 1),
			State:      "AZ",
			Latitude:   33,
			Longitude:  -112,
			CapacityAC: floatPtr(float64(i % 50)),
		})
	}

	n, err := st.ReplaceInstallations(ctx, insts)
	require.NoError(t, err)
	assert.Equal(t, int64(len(insts)), n)

	got, err := st.ListInstallations(ctx, Filter{Offset: sqliteBatchSize * 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{2001, 2002, 2003, 2004, 2005}, caseIDs(got))
}

func TestSQLite_ReplaceEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.ReplaceInstallations(ctx, fixtureInstallations())
	require.NoError(t, err)

	n, err := st.ReplaceInstallations(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := st.ListInstallations(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestSQLite_ClosedDB(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Close())

	_, err := st.ListInstallations(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: list installations")
}
