package fileio

import (
	"fmt"
	"io"

	excelize "github.com/xuri/excelize/v2"

	cmpmodel "basket-service/internal/compare/model"
)

const (
	SheetComparison = "Comparison"
	SheetBest       = "Best"
)

// WriteComparisonXLSX renders a comparison as a workbook with the row-level
// comparison, a totals footer and the best list on its own sheet.
func WriteComparisonXLSX(w io.Writer, labelA, labelB string, res cmpmodel.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetComparison); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetBest); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	if err := writeComparisonSheet(f, labelA, labelB, res, bold, money); err != nil {
		return err
	}
	if err := writeBestSheet(f, res.Best, bold, money); err != nil {
		return err
	}
	return f.Write(w)
}

func writeComparisonSheet(f *excelize.File, labelA, labelB string, res cmpmodel.Result, bold, money int) error {
	sh := SheetComparison
	header := []any{
		"Item",
		"Qty " + labelA, "Unit " + labelA, "Total " + labelA,
		"Qty " + labelB, "Unit " + labelB, "Total " + labelB,
		"Cheaper", "Delta (" + string(res.Mode) + ")", "Match", "Score",
	}
	if err := f.SetSheetRow(sh, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, "A1", "K1", bold); err != nil {
		return err
	}

	for i, r := range res.Rows {
		var score any
		if r.Score != nil {
			score = *r.Score
		}
		row := []any{
			r.Name,
			blankIfAbsent(r.InA, r.QtyA), blankIfAbsent(r.InA, r.UnitA), blankIfAbsent(r.InA, r.TotalA),
			blankIfAbsent(r.InB, r.QtyB), blankIfAbsent(r.InB, r.UnitB), blankIfAbsent(r.InB, r.TotalB),
			cheaperLabel(r.Cheaper, labelA, labelB), r.Delta, string(r.Match), score,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh, cell, &row); err != nil {
			return err
		}
	}

	last := len(res.Rows) + 1
	if last > 1 {
		if err := f.SetCellStyle(sh, "C2", fmt.Sprintf("D%d", last), money); err != nil {
			return err
		}
		if err := f.SetCellStyle(sh, "F2", fmt.Sprintf("G%d", last), money); err != nil {
			return err
		}
	}

	footer := last + 2
	totals := [][]any{
		{"Total " + labelA, res.Summary.TotalA},
		{"Total " + labelB, res.Summary.TotalB},
		{"Difference", res.Summary.Diff},
		{"Cheaper", cheaperLabel(res.Summary.Cheaper, labelA, labelB)},
	}
	for i, t := range totals {
		cell := fmt.Sprintf("A%d", footer+i)
		if err := f.SetSheetRow(sh, cell, &t); err != nil {
			return err
		}
		if err := f.SetCellStyle(sh, cell, cell, bold); err != nil {
			return err
		}
	}
	return f.SetColWidth(sh, "A", "A", 36)
}

func writeBestSheet(f *excelize.File, best cmpmodel.BestList, bold, money int) error {
	sh := SheetBest
	header := []any{"Item", "Qty", "Unit price", "Line total", "Source"}
	if err := f.SetSheetRow(sh, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, "A1", "E1", bold); err != nil {
		return err
	}
	for i, it := range best.Items {
		row := []any{it.Name, it.Quantity, it.UnitPrice, it.LineTotal, string(it.Source)}
		if err := f.SetSheetRow(sh, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	last := len(best.Items) + 1
	if last > 1 {
		if err := f.SetCellStyle(sh, "C2", fmt.Sprintf("D%d", last), money); err != nil {
			return err
		}
	}
	total := []any{"Total", nil, nil, best.Total}
	cell := fmt.Sprintf("A%d", last+1)
	if err := f.SetSheetRow(sh, cell, &total); err != nil {
		return err
	}
	if err := f.SetCellStyle(sh, cell, fmt.Sprintf("D%d", last+1), bold); err != nil {
		return err
	}
	return f.SetColWidth(sh, "A", "A", 36)
}

func blankIfAbsent(present bool, v float64) any {
	if !present {
		return nil
	}
	return v
}

func cheaperLabel(s cmpmodel.Side, labelA, labelB string) string {
	switch s {
	case cmpmodel.SideA:
		return labelA
	case cmpmodel.SideB:
		return labelB
	default:
		return "Same"
	}
}
