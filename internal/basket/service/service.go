package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"basket-service/internal/basket/model"
	"basket-service/internal/basket/store"
	cmpmodel "basket-service/internal/compare/model"
	cmpsvc "basket-service/internal/compare/service"
)

// ErrValidation marks bad caller input; handlers answer 400.
var ErrValidation = errors.New("validation")

type Service struct {
	store       store.Store
	log         zerolog.Logger
	opts        cmpmodel.Options
	defaultName string
}

func New(st store.Store, logger zerolog.Logger, opts cmpmodel.Options, defaultBasketName string) *Service {
	if defaultBasketName == "" {
		defaultBasketName = "Nakup"
	}
	return &Service{
		store:       st,
		log:         logger.With().Str("component", "basket").Logger(),
		opts:        opts,
		defaultName: defaultBasketName,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ===== baskets =====

func (s *Service) ListBaskets(ctx context.Context, userID string) ([]model.Basket, error) {
	return s.store.ListBaskets(ctx, userID)
}

func (s *Service) CreateBasket(ctx context.Context, userID, name string) (model.Basket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Basket{}, invalid("please enter basket name")
	}
	return s.store.CreateBasket(ctx, userID, name, nil)
}

func (s *Service) RenameBasket(ctx context.Context, userID, basketID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("please enter basket name")
	}
	return s.store.RenameBasket(ctx, userID, basketID, name)
}

func (s *Service) DeleteBasket(ctx context.Context, userID, basketID string) error {
	return s.store.DeleteBasket(ctx, userID, basketID)
}

// EnsureBasket returns the user's oldest basket, creating the default one
// for a user who has none.
func (s *Service) EnsureBasket(ctx context.Context, userID string) (model.Basket, bool, error) {
	b, err := s.store.OldestBasket(ctx, userID)
	if err == nil {
		return b, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return b, false, err
	}
	b, err = s.store.CreateBasket(ctx, userID, s.defaultName, nil)
	if err != nil {
		return b, false, err
	}
	s.log.Info().Str("user", userID).Str("basket", b.ID).Msg("default basket created")
	return b, true, nil
}

// ===== items =====

func (s *Service) ListItems(ctx context.Context, userID, basketID string) ([]model.Item, error) {
	return s.store.ListItems(ctx, userID, basketID)
}

// UpsertItem adds an item, merging it into an existing row with the same
// normalized name.
func (s *Service) UpsertItem(ctx context.Context, userID, basketID string, it cmpmodel.Item) (cmpsvc.UpsertPlan, error) {
	if strings.TrimSpace(it.Name) == "" {
		return cmpsvc.UpsertPlan{}, invalid("missing name")
	}
	if err := checkNumbers(it.Quantity, it.UnitPrice); err != nil {
		return cmpsvc.UpsertPlan{}, err
	}

	items, err := s.store.ListItems(ctx, userID, basketID)
	if err != nil {
		return cmpsvc.UpsertPlan{}, err
	}
	plan := cmpsvc.PlanUpsert(storedItems(items), it)

	switch plan.Action {
	case cmpsvc.ActionInserted:
		created, err := s.store.InsertItem(ctx, userID, basketID, model.NewItem{Name: plan.Name, Qty: plan.Qty, Price: plan.Price})
		if err != nil {
			return plan, err
		}
		plan.ItemID = created.ID
	case cmpsvc.ActionMerged:
		for _, ex := range items {
			if ex.ID != plan.ItemID {
				continue
			}
			ex.Qty, ex.Price = plan.Qty, plan.Price
			if err := s.store.UpdateItem(ctx, userID, ex); err != nil {
				return plan, err
			}
			break
		}
	}

	s.log.Debug().
		Str("basket", basketID).
		Str("action", string(plan.Action)).
		Str("name", plan.Name).
		Msg("upsert item")
	return plan, nil
}

func (s *Service) UpdateItem(ctx context.Context, userID, basketID, itemID string, req model.UpdateItemRequest) (model.Item, error) {
	it, err := s.store.GetItem(ctx, userID, basketID, itemID)
	if err != nil {
		return it, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return it, invalid("missing name")
		}
		it.Name = name
	}
	if req.Qty != nil {
		it.Qty = *req.Qty
	}
	if req.Price != nil {
		it.Price = *req.Price
	}
	if err := checkNumbers(it.Qty, it.Price); err != nil {
		return it, err
	}
	if err := s.store.UpdateItem(ctx, userID, it); err != nil {
		return it, err
	}
	return it, nil
}

func (s *Service) DeleteItem(ctx context.Context, userID, basketID, itemID string) error {
	return s.store.DeleteItem(ctx, userID, basketID, itemID)
}

// CleanupBasket merges rows sharing a normalized name.
func (s *Service) CleanupBasket(ctx context.Context, userID, basketID string) (model.CleanupResult, error) {
	items, err := s.store.ListItems(ctx, userID, basketID)
	if err != nil {
		return model.CleanupResult{}, err
	}
	if len(items) == 0 {
		return model.CleanupResult{OK: true}, nil
	}

	plan := cmpsvc.PlanCleanup(storedItems(items))
	if len(plan.Deletes) == 0 {
		return model.CleanupResult{OK: true}, nil
	}

	byID := make(map[string]model.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	updates := make([]model.Item, 0, len(plan.Updates))
	for _, u := range plan.Updates {
		it := byID[u.ID]
		if it.Qty == u.Qty && it.Price == u.Price {
			continue
		}
		it.Qty, it.Price = u.Qty, u.Price
		updates = append(updates, it)
	}
	if err := s.store.ReplaceItems(ctx, userID, basketID, updates, plan.Deletes); err != nil {
		return model.CleanupResult{}, err
	}

	s.log.Info().Str("basket", basketID).Int("merged", len(plan.Deletes)).Msg("basket cleaned up")
	return model.CleanupResult{OK: true, Merged: len(plan.Deletes)}, nil
}

// ImportItems upserts parsed spreadsheet rows one by one.
func (s *Service) ImportItems(ctx context.Context, userID, basketID string, items []cmpmodel.Item) (model.ImportResult, error) {
	res := model.ImportResult{Rows: len(items), Actions: make([]model.ImportAction, 0, len(items))}
	for _, it := range items {
		it.Quantity, it.UnitPrice = nonNegative(it.Quantity), nonNegative(it.UnitPrice)
		plan, err := s.UpsertItem(ctx, userID, basketID, it)
		if err != nil {
			if errors.Is(err, ErrValidation) {
				res.Skipped++
				res.Actions = append(res.Actions, model.ImportAction{Name: it.Name, Action: "invalid", Message: err.Error()})
				continue
			}
			return res, err
		}
		switch plan.Action {
		case cmpsvc.ActionInserted:
			res.Inserted++
		case cmpsvc.ActionMerged:
			res.Merged++
		case cmpsvc.ActionSkipped:
			res.Skipped++
		}
		res.Actions = append(res.Actions, model.ImportAction{Name: plan.Name, Action: string(plan.Action), Message: plan.Message})
	}
	return res, nil
}

// ===== comparison =====

func (s *Service) CompareBaskets(ctx context.Context, userID, basketA, basketB, mode string) (model.Comparison, error) {
	if basketA == "" || basketB == "" {
		return model.Comparison{}, invalid("select basket A and basket B")
	}
	if basketA == basketB {
		return model.Comparison{}, invalid("basket A and basket B must be different")
	}

	var (
		ba, bb         model.Basket
		itemsA, itemsB []model.Item
	)
	load := func(id string, b *model.Basket, items *[]model.Item) func(context.Context) error {
		return func(ctx context.Context) error {
			var err error
			if *b, err = s.store.GetBasket(ctx, userID, id); err != nil {
				return err
			}
			*items, err = s.store.ListItems(ctx, userID, id)
			return err
		}
	}
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(load(basketA, &ba, &itemsA))
	p.Go(load(basketB, &bb, &itemsB))
	if err := p.Wait(); err != nil {
		return model.Comparison{}, err
	}

	opts := s.opts
	opts.Mode = cmpmodel.ParseMode(mode, s.opts.Mode)
	res := cmpsvc.Run(engineItems(itemsA), engineItems(itemsB), opts)

	s.log.Debug().
		Str("a", basketA).
		Str("b", basketB).
		Str("mode", string(opts.Mode)).
		Int("rows", len(res.Rows)).
		Float64("best_total", res.Best.Total).
		Msg("compare done")
	return model.Comparison{BasketA: ba, BasketB: bb, Result: res}, nil
}

// CreateBestBasket stores the best list of a comparison as a new basket.
func (s *Service) CreateBestBasket(ctx context.Context, userID, basketA, basketB, mode string) (model.Basket, error) {
	cmp, err := s.CompareBaskets(ctx, userID, basketA, basketB, mode)
	if err != nil {
		return model.Basket{}, err
	}
	if len(cmp.Best.Items) == 0 {
		return model.Basket{}, invalid("no items provided")
	}

	items := make([]model.NewItem, 0, len(cmp.Best.Items))
	for _, it := range cmp.Best.Items {
		items = append(items, model.NewItem{Name: it.Name, Qty: it.Quantity, Price: it.UnitPrice})
	}
	name := fmt.Sprintf("Best (%s vs %s)", cmp.BasketA.Name, cmp.BasketB.Name)
	b, err := s.store.CreateBasket(ctx, userID, name, items)
	if err != nil {
		return b, err
	}
	s.log.Info().Str("basket", b.ID).Int("items", len(items)).Float64("total", cmp.Best.Total).Msg("best basket created")
	return b, nil
}

// ===== helpers =====

func storedItems(items []model.Item) []cmpsvc.StoredItem {
	out := make([]cmpsvc.StoredItem, len(items))
	for i, it := range items {
		out[i] = cmpsvc.StoredItem{ID: it.ID, Name: it.Name, Qty: it.Qty, Price: it.Price, PriceNull: it.PriceNull}
	}
	return out
}

func engineItems(items []model.Item) []cmpmodel.Item {
	out := make([]cmpmodel.Item, len(items))
	for i, it := range items {
		out[i] = cmpmodel.Item{Name: it.Name, Quantity: it.Qty, UnitPrice: it.Price}
	}
	return out
}

func checkNumbers(qty, price float64) error {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return invalid("qty must be a non-negative number")
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return invalid("price must be a non-negative number")
	}
	return nil
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
