// Package report writes calibrated results for downstream tools.
package report

import (
	"io"
	"os"
	"path/filepath"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"centiloid/internal/models"
)

// WriteCSV writes one header row followed by one row per record.
func WriteCSV(w io.Writer, records []models.CentiloidRecord) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// SaveCSV writes records to path, creating parent directories as needed.
func SaveCSV(path string, records []models.CentiloidRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	if err := WriteCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}
