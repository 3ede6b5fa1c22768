package service

import (
	"math"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"basket-service/internal/compare/model"
)

// Two metrics closer than this are the same price.
const epsilon = 1e-6

type candidate struct {
	a, b  string
	score float64
}

// Match pairs the aggregate rows of two baskets: exact keys first, then
// fuzzy name similarity over the remainder, then one-sided leftovers.
func Match(aggA, aggB map[string]model.AggregateRow, opt model.Options) []model.ComparisonRow {
	listA, listB := ordered(aggA), ordered(aggB)
	usedA := make(map[string]bool, len(listA))
	usedB := make(map[string]bool, len(listB))
	rows := make([]model.ComparisonRow, 0, len(listA)+len(listB))

	// 1) exact
	for _, ar := range listA {
		br, ok := aggB[ar.Key]
		if !ok {
			continue
		}
		rows = append(rows, pairRow(ar, br, model.MatchExact, nil, opt.Mode))
		usedA[ar.Key] = true
		usedB[br.Key] = true
	}

	// 2) fuzzy
	var cands []candidate
	for _, ar := range listA {
		if usedA[ar.Key] {
			continue
		}
		for _, br := range listB {
			if usedB[br.Key] {
				continue
			}
			// keys are the normalized display names
			if s := similarity(ar.Key, br.Key, opt); s >= opt.MinScore {
				cands = append(cands, candidate{a: ar.Key, b: br.Key, score: s})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	for _, c := range cands {
		if usedA[c.a] || usedB[c.b] {
			continue
		}
		score := c.score
		rows = append(rows, pairRow(aggA[c.a], aggB[c.b], model.MatchFuzzy, &score, opt.Mode))
		usedA[c.a] = true
		usedB[c.b] = true
	}

	// 3) leftovers
	for _, ar := range listA {
		if !usedA[ar.Key] {
			rows = append(rows, oneSided(ar, model.SideA, opt.Mode))
		}
	}
	for _, br := range listB {
		if !usedB[br.Key] {
			rows = append(rows, oneSided(br, model.SideB, opt.Mode))
		}
	}

	sortRows(rows, opt.Locale)
	return rows
}

func ordered(agg map[string]model.AggregateRow) []model.AggregateRow {
	out := make([]model.AggregateRow, 0, len(agg))
	for _, r := range agg {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func pairRow(ar, br model.AggregateRow, mt model.MatchType, score *float64, mode model.Mode) model.ComparisonRow {
	row := model.ComparisonRow{
		KeyA:   ar.Key,
		KeyB:   br.Key,
		Name:   pick(ar.DisplayName, br.DisplayName),
		QtyA:   ar.TotalQuantity,
		UnitA:  ar.UnitPrice(),
		TotalA: ar.TotalCost,
		QtyB:   br.TotalQuantity,
		UnitB:  br.UnitPrice(),
		TotalB: br.TotalCost,
		InA:    true,
		InB:    true,
		Match:  mt,
		Score:  score,
	}
	row.Delta = metric(row.UnitA, row.TotalA, mode) - metric(row.UnitB, row.TotalB, mode)
	row.Cheaper = verdict(row.Delta)
	return row
}

func oneSided(r model.AggregateRow, side model.Side, mode model.Mode) model.ComparisonRow {
	row := model.ComparisonRow{Name: r.DisplayName, Cheaper: side}
	m := metric(r.UnitPrice(), r.TotalCost, mode)
	if side == model.SideA {
		row.KeyA, row.QtyA, row.UnitA, row.TotalA, row.InA = r.Key, r.TotalQuantity, r.UnitPrice(), r.TotalCost, true
		row.Match, row.Delta = model.MatchOnlyA, m
	} else {
		row.KeyB, row.QtyB, row.UnitB, row.TotalB, row.InB = r.Key, r.TotalQuantity, r.UnitPrice(), r.TotalCost, true
		row.Match, row.Delta = model.MatchOnlyB, -m
	}
	return row
}

func metric(unit, total float64, mode model.Mode) float64 {
	if mode == model.ModeLine {
		return total
	}
	return unit
}

// verdict on delta = A - B: the lower metric wins.
func verdict(delta float64) model.Side {
	switch {
	case math.Abs(delta) < epsilon:
		return model.SideSame
	case delta < 0:
		return model.SideA
	default:
		return model.SideB
	}
}

// Two-sided rows first, then by |delta| desc, then by collated name.
func sortRows(rows []model.ComparisonRow, locale string) {
	col := newCollator(locale)
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i], rows[j]
		if ri.BothSides() != rj.BothSides() {
			return ri.BothSides()
		}
		di, dj := math.Abs(ri.Delta), math.Abs(rj.Delta)
		if math.Abs(di-dj) >= epsilon {
			return di > dj
		}
		return col.CompareString(ri.Name, rj.Name) < 0
	})
}

func newCollator(locale string) *collate.Collator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return collate.New(tag, collate.IgnoreCase)
}

func pick(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
