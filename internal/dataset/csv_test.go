package dataset

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CSVEmpty(t *testing.T) {
	path := writeFile(t, "empty.csv", "")

	_, err := Load(context.Background(), path, Options{TempDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty source")
}

func TestLoad_CSVHeaderOnlyWrongColumns(t *testing.T) {
	path := writeFile(t, "wrong.csv", "id,state,lat,lon\n")

	_, err := Load(context.Background(), path, Options{TempDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns case_id, p_state, ylat, xlong")
}

func TestLoad_CSVHeaderOnly(t *testing.T) {
	path := writeFile(t, "header.csv", "case_id,p_state,ylat,xlong\n")

	_, err := Load(context.Background(), path, Options{TempDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid installations")
}

func TestLoad_CSVAllRowsRejected(t *testing.T) {
	path := writeFile(t, "bad.csv", "case_id,p_state,ylat,xlong\nx,CA,1,2\n2,,1,2\n")

	_, err := Load(context.Background(), path, Options{TempDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(2 rows rejected)")
}

func TestOpenCSVStream(t *testing.T) {
	src := "\ufeffCASE_ID, p_state ,ylat,xlong\n 1 ,CA,35,-118\n\n2,TX,\"31\",-103,extra\n"

	stream, err := openCSVStream(context.Background(), strings.NewReader(src), "")
	require.NoError(t, err)

	var got []csvRecord
	for rec := range stream.records {
		got = append(got, rec)
	}
	require.NoError(t, <-stream.errc)
	require.Len(t, got, 2)

	assert.Equal(t, 2, got[0].line)
	assert.Equal(t, "1", stream.cols.lookup(got[0].fields)(colCaseID))
	assert.Equal(t, "CA", stream.cols.lookup(got[0].fields)(colState))

	assert.Equal(t, 4, got[1].line)
	assert.Equal(t, "31", stream.cols.lookup(got[1].fields)(colLatitude))
}

func TestOpenCSVStream_Cancelled(t *testing.T) {
	var b strings.Builder
	b.WriteString("case_id,p_state,ylat,xlong\n")
	for range 500 {
		b.WriteString("1,CA,35,-118\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := openCSVStream(ctx, strings.NewReader(b.String()), "")
	require.NoError(t, err)

	<-stream.records
	cancel()
	for range stream.records {
	}

	err = <-stream.errc
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenCSVStream_UnknownCharset(t *testing.T) {
	_, err := openCSVStream(context.Background(), strings.NewReader("case_id\n"), "klingon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported charset")
}
