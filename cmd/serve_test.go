package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solar-cli/internal/store"
)

func TestOpenServeStore_MemoryLoadsDataset(t *testing.T) {
	setupConfig(t)
	cfg.Dataset.Source = writeCSV(t)

	st, err := openServeStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	insts, err := st.ListInstallations(context.Background(), store.Filter{State: "CA"})
	require.NoError(t, err)
	assert.Len(t, insts, 2)

	run, err := st.LatestImport(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, store.ImportComplete, run.Status)
}

func TestOpenServeStore_MissingDataset(t *testing.T) {
	setupConfig(t)
	cfg.Dataset.Source = "/nonexistent/solar.csv"

	_, err := openServeStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serve: load dataset")
}

func TestOpenServeStore_SQLiteSkipsLoad(t *testing.T) {
	setupConfig(t)
	useSQLite(t)
	cfg.Dataset.Source = "/nonexistent/solar.csv"

	st, err := openServeStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	insts, err := st.ListInstallations(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, insts)
}

func TestServeCmd_InvalidPort(t *testing.T) {
	setupConfig(t)
	servePort = -1

	_, err := execute(t, serveCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestInitStore_UnknownDriver(t *testing.T) {
	setupConfig(t)
	cfg.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver: mysql")
}
