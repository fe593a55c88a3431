// Package parser turns an uploaded CSV byte stream into raw tender rows.
package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/tenderscope/internal/tender"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader yields RawRecords from a CSV stream in a single pass.
type Reader struct {
	csv     *csv.Reader
	columns []string
	notes   []tender.RowNote
	rows    int
	skipped int
	done    bool
}

// New reads the header row and prepares a Reader. It returns a
// *tender.ParseError when the stream is empty, is not valid UTF-8, or has no
// recognised column.
func New(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == string(utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &tender.ParseError{Err: errors.New("empty file: header row required")}
	}
	if err != nil {
		return nil, toParseError(err)
	}
	for _, h := range header {
		if !utf8.ValidString(h) {
			return nil, &tender.ParseError{Line: 1, Err: errors.New("header is not valid UTF-8")}
		}
	}

	columns := MapHeader(header)
	known := 0
	for _, c := range columns {
		if c != "" {
			known++
		}
	}
	if known == 0 {
		return nil, &tender.ParseError{Line: 1, Err: fmt.Errorf("no recognised columns in header %q", strings.Join(header, ","))}
	}

	return &Reader{csv: cr, columns: columns}, nil
}

// Columns returns the canonical column for each header position.
func (r *Reader) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Next returns the next usable row. Rows with the wrong field count or with a
// blank required column are skipped and recorded in Notes. It returns io.EOF
// after the last row and a *tender.ParseError if the stream is structurally
// broken.
func (r *Reader) Next() (tender.RawRecord, error) {
	if r.done {
		return tender.RawRecord{}, io.EOF
	}
	for {
		record, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			return tender.RawRecord{}, io.EOF
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) && errors.Is(pe.Err, csv.ErrFieldCount) {
				r.rows++
				r.skip(pe.StartLine, tender.NoteMalformedRow,
					fmt.Sprintf("expected %d fields, got %d", len(r.columns), len(record)))
				continue
			}
			r.done = true
			return tender.RawRecord{}, toParseError(err)
		}
		r.rows++
		line, _ := r.csv.FieldPos(0)

		raw := tender.RawRecord{Line: line, Fields: make(map[string]string, len(r.columns))}
		for i, col := range r.columns {
			if col == "" || i >= len(record) {
				continue
			}
			if !utf8.ValidString(record[i]) {
				r.done = true
				return tender.RawRecord{}, &tender.ParseError{Line: line, Err: errors.New("row is not valid UTF-8")}
			}
			raw.Fields[col] = record[i]
		}

		if missing := missingRequired(raw); len(missing) > 0 {
			r.skip(line, tender.NoteMissingField,
				fmt.Sprintf("missing required %s", strings.Join(missing, ", ")))
			continue
		}
		return raw, nil
	}
}

// Rows returns how many data rows have been read so far, including skipped ones.
func (r *Reader) Rows() int { return r.rows }

// Skipped returns how many data rows were dropped.
func (r *Reader) Skipped() int { return r.skipped }

// Notes returns the per-row defects recorded so far.
func (r *Reader) Notes() []tender.RowNote {
	return append([]tender.RowNote(nil), r.notes...)
}

func (r *Reader) skip(line int, kind, msg string) {
	r.skipped++
	r.notes = append(r.notes, tender.RowNote{Line: line, Kind: kind, Message: msg})
}

func missingRequired(raw tender.RawRecord) []string {
	var missing []string
	for _, col := range RequiredColumns {
		if strings.TrimSpace(raw.Get(col)) == "" {
			missing = append(missing, col)
		}
	}
	return missing
}

func toParseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &tender.ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &tender.ParseError{Err: err}
}
