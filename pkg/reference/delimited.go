package reference

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/csimplestring/go-csv/detector"
	"github.com/gocarina/gocsv"
)

// delimiters lists the accepted field delimiters in order of preference.
// Decimal points repeat on every line of a numeric table, so the detector
// can report them as candidates too.
var delimiters = []rune{'\t', ',', ';', '|'}

// detectDelimiter returns the most likely field delimiter of a CSV-like
// document, or fallback when none of the accepted delimiters is detected.
func detectDelimiter(data []byte, fallback rune) rune {
	d := detector.New()
	candidates := make(map[rune]bool)
	for _, c := range d.DetectDelimiter(bytes.NewReader(data), '"') {
		if len(c) > 0 {
			candidates[rune(c[0])] = true
		}
	}

	for _, delim := range delimiters {
		if candidates[delim] {
			return delim
		}
	}

	return fallback
}

func loadDelimited(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	fallback := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		fallback = '\t'
	}
	return parseDelimited(data, fallback)
}

// utf8BOM is written by Excel at the start of exported CSV files.
var utf8BOM = []byte("\xef\xbb\xbf")

func parseDelimited(data []byte, fallback rune) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	header, err := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if err != nil && header == "" {
		return nil, fmt.Errorf("%w: empty table", ErrMissingColumn)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data, fallback)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	if err := checkHeader(header, r.Comma); err != nil {
		return nil, err
	}

	var rows []rawRow
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		return nil, pfx.Err(err)
	}
	return build(rows)
}

// checkHeader verifies that the SUVR and CL columns exist. gocsv silently
// leaves unmatched fields empty, which would otherwise skip every row.
func checkHeader(line string, comma rune) error {
	r := csv.NewReader(bytes.NewReader([]byte(line)))
	r.Comma = comma
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return pfx.Err(err)
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[strings.TrimSpace(f)] = true
	}
	for _, col := range []string{"SUVR", "CL"} {
		if !seen[col] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return nil
}
