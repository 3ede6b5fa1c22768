package service

import (
	"math"
	"strings"
	"unicode/utf8"

	"basket-service/internal/compare/model"
)

// Aggregate groups items by normalized name, summing quantity and line cost.
// Items with a blank name are skipped. Names made only of punctuation
// normalize to "" and still aggregate, under that key.
func Aggregate(items []model.Item) map[string]model.AggregateRow {
	agg := make(map[string]model.AggregateRow, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		key := Normalize(name)
		qty, price := finite(it.Quantity), finite(it.UnitPrice)
		if ex, ok := agg[key]; ok {
			ex.TotalQuantity += qty
			ex.TotalCost += qty * price
			if utf8.RuneCountInString(name) > utf8.RuneCountInString(ex.DisplayName) {
				ex.DisplayName = name
			}
			agg[key] = ex
			continue
		}
		agg[key] = model.AggregateRow{
			Key:           key,
			DisplayName:   name,
			TotalQuantity: qty,
			TotalCost:     qty * price,
			Seq:           len(agg),
		}
	}
	return agg
}

// Sanitize zeroes non-finite and negative numbers.
func Sanitize(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		out[i] = model.Item{Name: it.Name, Quantity: finite(it.Quantity), UnitPrice: finite(it.UnitPrice)}
	}
	return out
}

// BasketTotal is Σ qty×price over the raw item list.
func BasketTotal(items []model.Item) float64 {
	var sum float64
	for _, it := range items {
		sum += finite(it.Quantity) * finite(it.UnitPrice)
	}
	return sum
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
