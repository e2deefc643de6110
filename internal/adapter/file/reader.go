// Package file extracts raw tables from delimited text files on disk.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
)

// ReadTable splits delimited text into a raw table. Rows may have differing
// widths so that preamble lines survive. Latin-1 input is decoded to UTF-8.
func ReadTable(r io.Reader, source string, delimiter rune, enc domain.Encoding) (domain.RawTable, error) {
	if enc == domain.EncodingLatin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	cr := csv.NewReader(r)
	if delimiter != 0 {
		cr.Comma = delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	lines, err := cr.ReadAll()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read %s: %w", source, err)
	}
	return domain.RawTable{Source: source, Lines: lines}, nil
}

// Extractor reads one file according to a schema's delimiter and encoding.
type Extractor struct {
	path   string
	schema domain.Schema
}

// NewExtractor creates an extractor for the file at path.
func NewExtractor(path string, schema domain.Schema) *Extractor {
	return &Extractor{path: path, schema: schema}
}

// Extract opens and splits the file. A missing or unreadable file is reported
// as domain.ErrSourceUnavailable.
func (e *Extractor) Extract(ctx context.Context) (domain.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawTable{}, err
	}
	f, err := os.Open(e.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.RawTable{}, fmt.Errorf("%w: %s does not exist", domain.ErrSourceUnavailable, e.path)
		}
		return domain.RawTable{}, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	defer f.Close()

	return ReadTable(f, e.path, e.schema.Delimiter, e.schema.Encoding)
}

func (e *Extractor) String() string { return e.path }
