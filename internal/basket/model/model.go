package model

import (
	"time"

	cmpmodel "basket-service/internal/compare/model"
)

type Basket struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Item struct {
	ID        string    `json:"id"`
	BasketID  string    `json:"basket_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`

	PriceNull bool `json:"-"` // stored price is NULL; Price reads 0
}

// NewItem is a row about to be inserted.
type NewItem struct {
	Name  string  `json:"name"`
	Qty   float64 `json:"qty"`
	Price float64 `json:"price"`
}

type CreateBasketRequest struct {
	Name string `json:"name"`
}

type UpsertItemRequest struct {
	Name  string   `json:"name"`
	Qty   *float64 `json:"qty"`
	Price *float64 `json:"price"`
}

type UpdateItemRequest struct {
	Name  *string  `json:"name"`
	Qty   *float64 `json:"qty"`
	Price *float64 `json:"price"`
}

type CompareRequest struct {
	A    string `json:"a"`
	B    string `json:"b"`
	Mode string `json:"mode"`
}

type Comparison struct {
	BasketA Basket `json:"basketA"`
	BasketB Basket `json:"basketB"`
	cmpmodel.Result
}

type CleanupResult struct {
	OK     bool `json:"ok"`
	Merged int  `json:"merged"`
}

type ImportResult struct {
	Rows     int            `json:"rows"`
	Inserted int            `json:"inserted"`
	Merged   int            `json:"merged"`
	Skipped  int            `json:"skipped"`
	Actions  []ImportAction `json:"actions"`
}

type ImportAction struct {
	Name    string `json:"name"`
	Action  string `json:"action"`
	Message string `json:"message"`
}
