package dataprocessing

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single CSV line. The feed's rows are short; this
// only guards against a corrupt file with no newlines.
const maxLineSize = 1024 * 1024

// SplitLine splits a CSV line into fields with quote awareness:
// characters between double quotes are literal (embedded commas
// included), the quotes themselves are stripped, and each field is
// trimmed of surrounding whitespace after unquoting.
//
// This is deliberately not an RFC 4180 parser. The government feed is
// produced by a quote-toggle writer and contains rows encoding/csv would
// reject; this splitter accepts what the feed actually ships.
func SplitLine(line string) []string {
	fields := make([]string, 0, 9)
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))

	return fields
}

// Reader streams field-rows from a CSV source in one forward pass.
// The first line is always treated as a header and discarded. Rows with
// fewer than minColumns fields are silently skipped and counted; this is
// the feed's known tolerance policy for malformed trailing rows, not an
// error path.
type Reader struct {
	scanner    *bufio.Scanner
	minColumns int
	line       int
	skipped    int
}

// NewReader creates a streaming reader over r. Restarting requires
// re-opening the source; the reader itself only moves forward.
func NewReader(r io.Reader, minColumns int) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner, minColumns: minColumns}
}

// Next returns the next data row. It reports false when the stream is
// exhausted or a read error occurred; check Err afterwards.
func (r *Reader) Next() ([]string, bool) {
	for r.scanner.Scan() {
		r.line++
		if r.line == 1 {
			continue
		}
		fields := SplitLine(r.scanner.Text())
		if len(fields) < r.minColumns {
			r.skipped++
			continue
		}
		return fields, true
	}
	return nil, false
}

// Line returns the number of lines consumed so far, header included.
func (r *Reader) Line() int { return r.line }

// Skipped returns the count of rows dropped for having too few columns.
func (r *Reader) Skipped() int { return r.skipped }

// Err returns the first error encountered while reading, if any.
func (r *Reader) Err() error { return r.scanner.Err() }
