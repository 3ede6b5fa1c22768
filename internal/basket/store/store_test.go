package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basket-service/internal/basket/model"
	"basket-service/internal/config"
)

func setup(t testing.TB) (*SQLStore, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := config.OpenDB(ctx, config.Config{DBDriver: "sqlite", DatabaseURL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, config.RunMigrations(ctx, db))
	return New(db, "sqlite"), db
}

func TestRebindDollar(t *testing.T) {
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", rebindDollar("SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "no params", rebindDollar("no params"))

	s := &SQLStore{driver: "sqlite"}
	assert.Equal(t, "a = ?", s.q("a = ?"))
	s.driver = "postgres"
	assert.Equal(t, "a = $1", s.q("a = ?"))
}

func TestBasketLifecycle(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	b, err := s.CreateBasket(ctx, "alice", "Lidl", nil)
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)

	got, err := s.GetBasket(ctx, "alice", b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lidl", got.Name)

	require.NoError(t, s.RenameBasket(ctx, "alice", b.ID, "Lidl Praha"))
	list, err := s.ListBaskets(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Lidl Praha", list[0].Name)

	oldest, err := s.OldestBasket(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, b.ID, oldest.ID)

	require.NoError(t, s.DeleteBasket(ctx, "alice", b.ID))
	_, err = s.GetBasket(ctx, "alice", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.OldestBasket(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBasketsAreScopedToOwner(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	b, err := s.CreateBasket(ctx, "alice", "Albert", []model.NewItem{{Name: "milk", Qty: 1, Price: 20}})
	require.NoError(t, err)

	_, err = s.GetBasket(ctx, "mallory", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListItems(ctx, "mallory", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.InsertItem(ctx, "mallory", b.ID, model.NewItem{Name: "x", Qty: 1})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.RenameBasket(ctx, "mallory", b.ID, "mine"), ErrNotFound)
	assert.ErrorIs(t, s.DeleteBasket(ctx, "mallory", b.ID), ErrNotFound)

	list, err := s.ListBaskets(ctx, "mallory")
	require.NoError(t, err)
	assert.Empty(t, list)

	items, err := s.ListItems(ctx, "alice", b.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.ErrorIs(t, s.DeleteItem(ctx, "mallory", b.ID, items[0].ID), ErrNotFound)
}

func TestItems(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	b, err := s.CreateBasket(ctx, "alice", "Tesco", nil)
	require.NoError(t, err)

	milk, err := s.InsertItem(ctx, "alice", b.ID, model.NewItem{Name: "Mléko", Qty: 2, Price: 19.9})
	require.NoError(t, err)
	_, err = s.InsertItem(ctx, "alice", b.ID, model.NewItem{Name: "Chléb", Qty: 1, Price: 35})
	require.NoError(t, err)

	items, err := s.ListItems(ctx, "alice", b.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Mléko", items[0].Name)
	assert.Equal(t, 2.0, items[0].Qty)
	assert.Equal(t, 19.9, items[0].Price)

	milk.Qty = 3
	require.NoError(t, s.UpdateItem(ctx, "alice", milk))
	got, err := s.GetItem(ctx, "alice", b.ID, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.Qty)

	require.NoError(t, s.DeleteItem(ctx, "alice", b.ID, milk.ID))
	_, err = s.GetItem(ctx, "alice", b.ID, milk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNullQuantityDefaultsToOne(t *testing.T) {
	s, db := setup(t)
	ctx := context.Background()

	b, err := s.CreateBasket(ctx, "alice", "Billa", nil)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO basket_items (id, basket_id, user_id, name, qty, price, created_at)
		VALUES ('legacy', ?, 'alice', 'rohlík', NULL, NULL, ?)`, b.ID, b.CreatedAt)
	require.NoError(t, err)

	items, err := s.ListItems(ctx, "alice", b.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1.0, items[0].Qty)
	assert.Equal(t, 0.0, items[0].Price)
	assert.True(t, items[0].PriceNull)

	milk, err := s.InsertItem(ctx, "alice", b.ID, model.NewItem{Name: "milk", Qty: 1, Price: 0})
	require.NoError(t, err)
	got, err := s.GetItem(ctx, "alice", b.ID, milk.ID)
	require.NoError(t, err)
	assert.False(t, got.PriceNull)
}

func TestReplaceItemsIsAtomic(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	b, err := s.CreateBasket(ctx, "alice", "Kaufland", []model.NewItem{
		{Name: "milk", Qty: 1, Price: 10},
		{Name: "Milk", Qty: 2, Price: 8},
	})
	require.NoError(t, err)
	items, err := s.ListItems(ctx, "alice", b.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	kept := items[0]
	kept.Qty, kept.Price = 3, 8

	// unknown id in deletes rolls the whole change back
	err = s.ReplaceItems(ctx, "alice", b.ID, []model.Item{kept}, []string{items[1].ID, "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
	after, err := s.ListItems(ctx, "alice", b.ID)
	require.NoError(t, err)
	assert.Len(t, after, 2)

	require.NoError(t, s.ReplaceItems(ctx, "alice", b.ID, []model.Item{kept}, []string{items[1].ID}))
	after, err = s.ListItems(ctx, "alice", b.ID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, 3.0, after[0].Qty)
	assert.Equal(t, 8.0, after[0].Price)
}
