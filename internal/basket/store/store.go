package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"basket-service/internal/basket/model"
)

// ErrNotFound covers both missing rows and rows owned by another user.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary of the service. Every call is scoped
// to the owning user.
type Store interface {
	ListBaskets(ctx context.Context, userID string) ([]model.Basket, error)
	GetBasket(ctx context.Context, userID, basketID string) (model.Basket, error)
	OldestBasket(ctx context.Context, userID string) (model.Basket, error)
	CreateBasket(ctx context.Context, userID, name string, items []model.NewItem) (model.Basket, error)
	RenameBasket(ctx context.Context, userID, basketID, name string) error
	DeleteBasket(ctx context.Context, userID, basketID string) error

	ListItems(ctx context.Context, userID, basketID string) ([]model.Item, error)
	GetItem(ctx context.Context, userID, basketID, itemID string) (model.Item, error)
	InsertItem(ctx context.Context, userID, basketID string, it model.NewItem) (model.Item, error)
	UpdateItem(ctx context.Context, userID string, it model.Item) error
	DeleteItem(ctx context.Context, userID, basketID, itemID string) error
	// ReplaceItems updates the given rows and deletes the listed ids in one transaction.
	ReplaceItems(ctx context.Context, userID, basketID string, updates []model.Item, deletes []string) error
}

type SQLStore struct {
	db     *sql.DB
	driver string

	mu   sync.Mutex
	last time.Time
}

func New(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// now is strictly increasing so created_at orders rows inserted back to back.
// Microsecond precision matches postgres timestamps.
func (s *SQLStore) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q rewrites ? placeholders into $n for postgres.
func (s *SQLStore) q(query string) string {
	if s.driver != "postgres" {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ===== baskets =====

func (s *SQLStore) ListBaskets(ctx context.Context, userID string) ([]model.Basket, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, name, created_at
		FROM baskets
		WHERE user_id = ?
		ORDER BY created_at DESC, id
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list baskets: %w", err)
	}
	defer rows.Close()

	baskets := []model.Basket{}
	for rows.Next() {
		var b model.Basket
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan basket: %w", err)
		}
		baskets = append(baskets, b)
	}
	return baskets, rows.Err()
}

func (s *SQLStore) GetBasket(ctx context.Context, userID, basketID string) (model.Basket, error) {
	return s.getBasket(ctx, s.db, userID, basketID)
}

func (s *SQLStore) getBasket(ctx context.Context, q querier, userID, basketID string) (model.Basket, error) {
	var b model.Basket
	err := q.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, name, created_at
		FROM baskets
		WHERE id = ? AND user_id = ?
	`), basketID, userID).Scan(&b.ID, &b.UserID, &b.Name, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return b, fmt.Errorf("basket %s: %w", basketID, ErrNotFound)
	}
	if err != nil {
		return b, fmt.Errorf("get basket: %w", err)
	}
	return b, nil
}

func (s *SQLStore) OldestBasket(ctx context.Context, userID string) (model.Basket, error) {
	var b model.Basket
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, name, created_at
		FROM baskets
		WHERE user_id = ?
		ORDER BY created_at ASC, id
		LIMIT 1
	`), userID).Scan(&b.ID, &b.UserID, &b.Name, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	if err != nil {
		return b, fmt.Errorf("oldest basket: %w", err)
	}
	return b, nil
}

// CreateBasket inserts the basket and its initial items atomically.
func (s *SQLStore) CreateBasket(ctx context.Context, userID, name string, items []model.NewItem) (model.Basket, error) {
	b := model.Basket{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: s.now(),
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO baskets (id, user_id, name, created_at)
			VALUES (?, ?, ?, ?)
		`), b.ID, b.UserID, b.Name, b.CreatedAt); err != nil {
			return fmt.Errorf("insert basket: %w", err)
		}
		for _, it := range items {
			if _, err := s.insertItem(ctx, tx, userID, b.ID, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Basket{}, err
	}
	return b, nil
}

func (s *SQLStore) RenameBasket(ctx context.Context, userID, basketID, name string) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE baskets SET name = ? WHERE id = ? AND user_id = ?
	`), name, basketID, userID)
	if err != nil {
		return fmt.Errorf("rename basket: %w", err)
	}
	return affected(res, "basket "+basketID)
}

func (s *SQLStore) DeleteBasket(ctx context.Context, userID, basketID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getBasket(ctx, tx, userID, basketID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM basket_items WHERE basket_id = ? AND user_id = ?`), basketID, userID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM baskets WHERE id = ? AND user_id = ?`), basketID, userID); err != nil {
			return fmt.Errorf("delete basket: %w", err)
		}
		return nil
	})
}

// ===== items =====

const itemColumns = `id, basket_id, user_id, name, qty, price, created_at`

func (s *SQLStore) ListItems(ctx context.Context, userID, basketID string) ([]model.Item, error) {
	if _, err := s.getBasket(ctx, s.db, userID, basketID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+itemColumns+`
		FROM basket_items
		WHERE basket_id = ? AND user_id = ?
		ORDER BY created_at ASC, id
	`), basketID, userID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLStore) GetItem(ctx context.Context, userID, basketID, itemID string) (model.Item, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+itemColumns+`
		FROM basket_items
		WHERE id = ? AND basket_id = ? AND user_id = ?
	`), itemID, basketID, userID)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return it, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return it, err
}

func (s *SQLStore) InsertItem(ctx context.Context, userID, basketID string, it model.NewItem) (model.Item, error) {
	var out model.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getBasket(ctx, tx, userID, basketID); err != nil {
			return err
		}
		var err error
		out, err = s.insertItem(ctx, tx, userID, basketID, it)
		return err
	})
	return out, err
}

func (s *SQLStore) insertItem(ctx context.Context, q querier, userID, basketID string, it model.NewItem) (model.Item, error) {
	item := model.Item{
		ID:        uuid.NewString(),
		BasketID:  basketID,
		UserID:    userID,
		Name:      it.Name,
		Qty:       it.Qty,
		Price:     it.Price,
		CreatedAt: s.now(),
	}
	if _, err := q.ExecContext(ctx, s.q(`
		INSERT INTO basket_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), item.ID, item.BasketID, item.UserID, item.Name, item.Qty, item.Price, item.CreatedAt); err != nil {
		return model.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func (s *SQLStore) UpdateItem(ctx context.Context, userID string, it model.Item) error {
	return s.updateItem(ctx, s.db, userID, it)
}

func (s *SQLStore) updateItem(ctx context.Context, q querier, userID string, it model.Item) error {
	res, err := q.ExecContext(ctx, s.q(`
		UPDATE basket_items SET name = ?, qty = ?, price = ?
		WHERE id = ? AND basket_id = ? AND user_id = ?
	`), it.Name, it.Qty, it.Price, it.ID, it.BasketID, userID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return affected(res, "item "+it.ID)
}

func (s *SQLStore) DeleteItem(ctx context.Context, userID, basketID, itemID string) error {
	return s.deleteItem(ctx, s.db, userID, basketID, itemID)
}

func (s *SQLStore) deleteItem(ctx context.Context, q querier, userID, basketID, itemID string) error {
	res, err := q.ExecContext(ctx, s.q(`
		DELETE FROM basket_items WHERE id = ? AND basket_id = ? AND user_id = ?
	`), itemID, basketID, userID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return affected(res, "item "+itemID)
}

func (s *SQLStore) ReplaceItems(ctx context.Context, userID, basketID string, updates []model.Item, deletes []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, it := range updates {
			it.BasketID = basketID
			if err := s.updateItem(ctx, tx, userID, it); err != nil {
				return err
			}
		}
		for _, id := range deletes {
			if err := s.deleteItem(ctx, tx, userID, basketID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

// A NULL qty counts as 1 and a NULL price as 0.
func scanItem(sc scanner) (model.Item, error) {
	var (
		it         model.Item
		qty, price sql.NullFloat64
	)
	if err := sc.Scan(&it.ID, &it.BasketID, &it.UserID, &it.Name, &qty, &price, &it.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return it, err
		}
		return it, fmt.Errorf("scan item: %w", err)
	}
	it.Qty = 1
	if qty.Valid {
		it.Qty = qty.Float64
	}
	if price.Valid {
		it.Price = price.Float64
	}
	it.PriceNull = !price.Valid
	return it, nil
}

func affected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
