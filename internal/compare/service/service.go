package service

import (
	"basket-service/internal/compare/model"
)

// Run compares two raw item lists: aggregate both sides, match, build the
// best list and the basket totals.
func Run(a, b []model.Item, opt model.Options) model.Result {
	a, b = Sanitize(a), Sanitize(b)
	if opt.Mode == "" {
		opt.Mode = model.ModeUnit
	}

	rows := Match(Aggregate(a), Aggregate(b), opt)
	best := BuildBestList(rows, opt.Locale)

	totalA, totalB := BasketTotal(a), BasketTotal(b)
	diff := totalA - totalB
	return model.Result{
		Mode: opt.Mode,
		Rows: rows,
		Best: best,
		Summary: model.Summary{
			TotalA:  totalA,
			TotalB:  totalB,
			Diff:    diff,
			Cheaper: verdict(diff),
		},
	}
}
