package reference

import (
	"fmt"

	"github.com/carbocation/pfx"
	"github.com/xuri/excelize/v2"
)

// loadXLSX reads the first sheet of an Office Open XML workbook, such as the
// published GAAIN supplementary table. The first row is the header; column
// names are matched case-insensitively.
func loadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrMissingColumn, path)
	}

	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", ErrMissingColumn, path)
	}

	cols, err := sheetColumns(grid[0])
	if err != nil {
		return nil, err
	}

	rows := make([]rawRow, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		rows = append(rows, sheetRow(cols, cells))
	}
	return build(rows)
}
