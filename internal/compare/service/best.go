package service

import (
	"math"
	"sort"

	"basket-service/internal/compare/model"
)

var sourceRank = map[model.Side]int{model.SideA: 0, model.SideB: 1, model.SideSame: 2}

// BuildBestList picks, per comparison row, the cheaper unit price for the
// larger of the two quantities.
func BuildBestList(rows []model.ComparisonRow, locale string) model.BestList {
	items := make([]model.BestItem, 0, len(rows))
	var total float64
	for _, r := range rows {
		qty := math.Max(r.QtyA, r.QtyB)
		hasA, hasB := r.QtyA > 0, r.QtyB > 0

		var src model.Side
		var price float64
		switch {
		case hasA && !hasB:
			src, price = model.SideA, r.UnitA
		case hasB && !hasA:
			src, price = model.SideB, r.UnitB
		case !r.InB:
			src, price = model.SideA, r.UnitA
		case !r.InA:
			src, price = model.SideB, r.UnitB
		default:
			src = verdict(r.UnitA - r.UnitB)
			price = math.Min(r.UnitA, r.UnitB)
		}

		line := qty * price
		total += line
		items = append(items, model.BestItem{
			Name:      r.Name,
			Quantity:  qty,
			UnitPrice: price,
			LineTotal: line,
			Source:    src,
		})
	}

	col := newCollator(locale)
	sort.SliceStable(items, func(i, j int) bool {
		if ri, rj := sourceRank[items[i].Source], sourceRank[items[j].Source]; ri != rj {
			return ri < rj
		}
		return col.CompareString(items[i].Name, items[j].Name) < 0
	})
	return model.BestList{Items: items, Total: total}
}
