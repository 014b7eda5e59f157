package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// csvRecord is one data row of a USPVDB CSV file.
type csvRecord struct {
	line   int
	fields []string
}

// csvStream delivers the data rows of a USPVDB CSV whose header has already
// been read and checked. errc yields at most one error once records closes.
type csvStream struct {
	cols    columnIndex
	records <-chan csvRecord
	errc    <-chan error
}

// decodeCharset wraps r so that it yields UTF-8 from the named encoding.
func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

// openCSVStream reads the header synchronously, failing on an empty source or
// missing required columns, then streams the remaining rows until EOF or ctx
// is cancelled.
func openCSVStream(ctx context.Context, r io.Reader, charset string) (*csvStream, error) {
	src, err := decodeCharset(r, charset)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("dataset: empty source, no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read header")
	}
	// Excel exports often prefix the first header with a UTF-8 BOM.
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	cols := newColumnIndex(header)
	if missing := cols.missing(requiredColumns); len(missing) > 0 {
		return nil, eris.Errorf("dataset: missing columns %s", strings.Join(missing, ", "))
	}

	records := make(chan csvRecord, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(records)

		for {
			fields, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errc <- eris.Wrap(err, "dataset: read row")
				return
			}
			line, _ := reader.FieldPos(0)
			for i := range fields {
				fields[i] = strings.TrimSpace(fields[i])
			}

			select {
			case records <- csvRecord{line: line, fields: fields}:
			case <-ctx.Done():
				errc <- eris.Wrap(ctx.Err(), "dataset: read cancelled")
				return
			}
		}
	}()

	return &csvStream{cols: cols, records: records, errc: errc}, nil
}

// loadCSV parses every row of a USPVDB CSV file.
func loadCSV(ctx context.Context, path, charset string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := openCSVStream(ctx, f, charset)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for rec := range stream.records {
		in, err := parseInstallation(stream.cols.lookup(rec.fields), nil)
		if err != nil {
			res.Failed++
			if res.Failed <= maxLoggedFailures {
				zap.L().Warn("dataset: skipping row",
					zap.Int("line", rec.line),
					zap.Strings("record", rec.fields),
					zap.Error(err),
				)
			}
			continue
		}
		res.Installations = append(res.Installations, in)
	}

	if err := <-stream.errc; err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	return res, nil
}
