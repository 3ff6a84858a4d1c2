package reference

import (
	"fmt"

	"github.com/carbocation/pfx"
	"github.com/extrame/xls"
)

// loadXLS reads the first sheet of a legacy Excel workbook. The first row is
// the header; column names are matched case-insensitively.
func loadXLS(path string) (*Table, error) {
	workbook, err := safelyOpenXLS(path)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}
	if workbook.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrMissingColumn, path)
	}

	sheet := workbook.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%w: %s sheet 0 is unreadable", ErrMissingColumn, path)
	}

	head := sheet.Row(0)
	if head == nil {
		return nil, fmt.Errorf("%w: %s has no header row", ErrMissingColumn, path)
	}
	cols, err := sheetColumns(xlsCells(head))
	if err != nil {
		return nil, err
	}

	var rows []rawRow
	for r := 1; r <= int(sheet.MaxRow); r++ {
		row := sheet.Row(r)
		if row == nil {
			continue
		}
		rows = append(rows, sheetRow(cols, xlsCells(row)))
	}
	return build(rows)
}

func xlsCells(row *xls.Row) []string {
	cells := make([]string, 0, row.LastCol()+1)
	for c := 0; c <= row.LastCol(); c++ {
		cells = append(cells, row.Col(c))
	}
	return cells
}

// safelyOpenXLS turns panics raised while parsing a malformed workbook into
// errors.
func safelyOpenXLS(path string) (workbook *xls.WorkBook, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			workbook, err = nil, fmt.Errorf("%v", panicErr)
		}
	}()

	return xls.Open(path, "utf-8")
}
