package service

import (
	"fmt"
	"math"
	"strings"

	"basket-service/internal/compare/model"
)

type UpsertAction string

const (
	ActionInserted UpsertAction = "inserted"
	ActionSkipped  UpsertAction = "skipped"
	ActionMerged   UpsertAction = "merged"
)

// StoredItem is an item row already persisted in a basket.
type StoredItem struct {
	ID        string
	Name      string
	Qty       float64
	Price     float64
	PriceNull bool // no stored price; Price is 0
}

type UpsertPlan struct {
	Action  UpsertAction `json:"action"`
	ItemID  string       `json:"itemId,omitempty"` // row to update; empty on insert
	Name    string       `json:"name"`
	Qty     float64      `json:"qty"`
	Price   float64      `json:"price"`
	Message string       `json:"message"`
}

// PlanUpsert decides what adding it to a basket holding existing does:
// a new key is inserted, an identical line is skipped, anything else is
// merged into the existing row keeping the cheaper unit price.
func PlanUpsert(existing []StoredItem, it model.Item) UpsertPlan {
	name := strings.TrimSpace(it.Name)
	qty, price := finite(it.Quantity), finite(it.UnitPrice)
	key := Normalize(name)

	for _, ex := range existing {
		if Normalize(ex.Name) != key {
			continue
		}
		if ex.Qty == qty && ex.Price == price {
			return UpsertPlan{
				Action:  ActionSkipped,
				ItemID:  ex.ID,
				Name:    ex.Name,
				Qty:     ex.Qty,
				Price:   ex.Price,
				Message: fmt.Sprintf("Item already exists (%s). Nothing added.", ex.Name),
			}
		}
		newQty := ex.Qty + qty
		return UpsertPlan{
			Action: ActionMerged,
			ItemID: ex.ID,
			Name:   ex.Name,
			Qty:    newQty,
			Price:  math.Min(ex.Price, price),
			Message: fmt.Sprintf("Item already exists (%s). Merged quantities (qty %s + %s = %s).",
				ex.Name, fmtNum(ex.Qty), fmtNum(qty), fmtNum(newQty)),
		}
	}
	return UpsertPlan{Action: ActionInserted, Name: name, Qty: qty, Price: price, Message: "Added as a new item."}
}

type CleanupPlan struct {
	Updates []StoredItem // kept rows with merged qty/price
	Deletes []string     // ids of the absorbed duplicates
}

// PlanCleanup collapses rows sharing a normalized name into the first one
// seen: quantities are summed and the minimum price kept. A duplicate
// without a stored price leaves the kept price alone; a kept row without
// one starts from 0.
func PlanCleanup(items []StoredItem) CleanupPlan {
	var plan CleanupPlan
	idx := make(map[string]int)
	for _, it := range items {
		key := Normalize(it.Name)
		if i, ok := idx[key]; ok {
			kept := &plan.Updates[i]
			kept.Qty += it.Qty
			if !it.PriceNull {
				kept.Price = math.Min(kept.Price, it.Price)
			}
			plan.Deletes = append(plan.Deletes, it.ID)
			continue
		}
		idx[key] = len(plan.Updates)
		it.PriceNull = false
		plan.Updates = append(plan.Updates, it)
	}
	return plan
}

func fmtNum(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}
