// Package reference loads published reference SUVR and Centiloid values,
// such as the GAAIN supplementary table, for calibration QA.
//
// Rows are kept in file order. The validator pairs them with computed values
// by position within each anchor group, so the table must list subjects in
// the same order as the cohort directories are processed.
package reference

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"centiloid/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for file types without a reader.
	ErrUnsupportedFormat = errors.New("reference: unsupported table format")

	// ErrMissingColumn is returned when the SUVR or CL column is absent.
	ErrMissingColumn = errors.New("reference: required column missing")

	// ErrUnknownGroup is returned for rows that cannot be assigned to an anchor.
	ErrUnknownGroup = errors.New("reference: row does not belong to an anchor group")
)

// Row is one subject of the reference table.
type Row struct {
	Subject string
	Group   string
	Role    models.Role
	SUVR    float64
	CL      float64
}

// Table holds reference rows split by anchor role, each in file order.
type Table struct {
	Low  []Row
	High []Row
}

// Rows returns the rows of one anchor role.
func (t *Table) Rows(role models.Role) []Row {
	switch role {
	case models.RoleAnchorLow:
		return t.Low
	case models.RoleAnchorHigh:
		return t.High
	}
	return nil
}

// SUVR returns the reference SUVR column of one anchor role.
func (t *Table) SUVR(role models.Role) []float64 {
	rows := t.Rows(role)
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.SUVR
	}
	return out
}

// CL returns the reference Centiloid column of one anchor role.
func (t *Table) CL(role models.Role) []float64 {
	rows := t.Rows(role)
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.CL
	}
	return out
}

// Load reads a reference table, choosing the reader from the file extension.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return loadDelimited(path)
	case ".xls":
		return loadXLS(path)
	case ".xlsx", ".xlsm":
		return loadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Classify assigns an anchor role from a group label, falling back to the
// subject identifier when the label is blank. AD maps to the high anchor;
// YC, CONTROL and NORMAL map to the low anchor.
func Classify(group, subject string) (models.Role, bool) {
	label := strings.ToUpper(strings.TrimSpace(group))
	if label == "" {
		label = strings.ToUpper(strings.TrimSpace(subject))
		switch {
		case strings.HasPrefix(label, "AD"):
			return models.RoleAnchorHigh, true
		case strings.HasPrefix(label, "YC"):
			return models.RoleAnchorLow, true
		}
		return "", false
	}

	switch {
	case strings.Contains(label, "YC"), strings.Contains(label, "CONTROL"), strings.Contains(label, "NORMAL"):
		return models.RoleAnchorLow, true
	case strings.Contains(label, "AD"):
		return models.RoleAnchorHigh, true
	}
	return "", false
}

// rawRow is a row before numeric parsing and classification.
type rawRow struct {
	Subject string `csv:"Subject"`
	Group   string `csv:"Group"`
	SUVR    string `csv:"SUVR"`
	CL      string `csv:"CL"`
}

// build parses and classifies raw rows. Rows with a blank SUVR or CL are
// separators or notes and are skipped. Row numbers in errors count data rows
// from 1.
func build(rows []rawRow) (*Table, error) {
	t := &Table{}
	for i, raw := range rows {
		suvrText := strings.TrimSpace(raw.SUVR)
		clText := strings.TrimSpace(raw.CL)
		if suvrText == "" || clText == "" {
			continue
		}

		suvr, err := strconv.ParseFloat(suvrText, 64)
		if err != nil {
			return nil, fmt.Errorf("reference: row %d: SUVR %q: %w", i+1, raw.SUVR, err)
		}
		cl, err := strconv.ParseFloat(clText, 64)
		if err != nil {
			return nil, fmt.Errorf("reference: row %d: CL %q: %w", i+1, raw.CL, err)
		}

		role, ok := Classify(raw.Group, raw.Subject)
		if !ok {
			return nil, fmt.Errorf("%w: row %d (subject %q, group %q)", ErrUnknownGroup, i+1, raw.Subject, raw.Group)
		}

		row := Row{
			Subject: strings.TrimSpace(raw.Subject),
			Group:   strings.TrimSpace(raw.Group),
			Role:    role,
			SUVR:    suvr,
			CL:      cl,
		}
		if role == models.RoleAnchorHigh {
			t.High = append(t.High, row)
		} else {
			t.Low = append(t.Low, row)
		}
	}
	return t, nil
}

// sheetColumns locates the Subject, Group, SUVR and CL columns of a
// spreadsheet header row. Names are matched case-insensitively and the first
// match wins; absent optional columns map to -1.
func sheetColumns(header []string) (map[string]int, error) {
	cols := map[string]int{"SUBJECT": -1, "GROUP": -1, "SUVR": -1, "CL": -1}
	for c, cell := range header {
		name := strings.ToUpper(strings.TrimSpace(cell))
		if idx, ok := cols[name]; ok && idx < 0 {
			cols[name] = c
		}
	}
	for _, required := range []string{"SUVR", "CL"} {
		if cols[required] < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return cols, nil
}

// sheetRow picks the known columns out of one spreadsheet row. Rows may be
// shorter than the header.
func sheetRow(cols map[string]int, cells []string) rawRow {
	cell := func(name string) string {
		if c := cols[name]; c >= 0 && c < len(cells) {
			return cells[c]
		}
		return ""
	}
	return rawRow{
		Subject: cell("SUBJECT"),
		Group:   cell("GROUP"),
		SUVR:    cell("SUVR"),
		CL:      cell("CL"),
	}
}
