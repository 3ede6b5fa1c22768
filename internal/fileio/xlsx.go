package fileio

import (
	"io"

	excelize "github.com/xuri/excelize/v2"
)

// readXLSX reads the first visible worksheet that has any cells. Price
// lists exported from shop portals often open with an empty cover sheet.
func readXLSX(r io.Reader, headerRow int) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		if visible, err := f.GetSheetVisible(sheet); err == nil && !visible {
			continue
		}
		rows, err := sheetRows(f, sheet)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		h := pickHeader(rows, headerRow)
		return rowsToMaps(rows, h, headerRow), nil
	}
	return nil, nil
}

func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	it, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows [][]string
	nonEmpty := false
	for it.Next() {
		cols, err := it.Columns()
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if c != "" {
				nonEmpty = true
				break
			}
		}
		rows = append(rows, cols)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	if !nonEmpty {
		return nil, nil
	}
	return rows, nil
}
