package fileio

import (
	"bytes"
	"errors"
	"io"
	"strings"

	xls "github.com/extrame/xls"
)

// Legacy Czech/Slovak exports are mostly cp1250.
var xlsCharsets = []string{"windows-1250", "utf-8", "iso-8859-2"}

func normalizeCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
}

// computeMaxCols finds the real table width. Row.LastCol is unreliable on
// files written by accounting tools, so columns are probed directly.
func computeMaxCols(sheet *xls.WorkSheet) int {
	const probeMax = 256
	maxCols := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		r := sheet.Row(i)
		if r == nil {
			continue
		}
		for j := maxCols; j < probeMax; j++ {
			if normalizeCell(r.Col(j)) != "" {
				maxCols = j + 1
			}
		}
	}
	if maxCols == 0 {
		maxCols = 1
	}
	return maxCols
}

func readXLS(r io.Reader, headerRow int) ([]map[string]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var wb *xls.WorkBook
	var lastErr error
	for _, ch := range xlsCharsets {
		wb, err = xls.OpenReader(bytes.NewReader(b), ch)
		if err == nil && wb != nil {
			break
		}
		lastErr = err
	}
	if wb == nil {
		if lastErr == nil {
			lastErr = errors.New("xls: failed to open workbook")
		}
		return nil, lastErr
	}

	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		rows := xlsRows(sheet)
		if len(rows) == 0 {
			continue
		}
		h := pickHeader(rows, headerRow)
		return rowsToMaps(rows, h, headerRow), nil
	}
	return nil, nil
}

// xlsRows returns the sheet as a grid with trailing blank rows dropped, or
// nil when every cell is empty.
func xlsRows(sheet *xls.WorkSheet) [][]string {
	maxCols := computeMaxCols(sheet)
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	last := -1
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		cols := make([]string, maxCols)
		if row != nil {
			for j := 0; j < maxCols; j++ {
				cols[j] = normalizeCell(row.Col(j))
				if cols[j] != "" {
					last = i
				}
			}
		}
		rows = append(rows, cols)
	}
	return rows[:last+1]
}
