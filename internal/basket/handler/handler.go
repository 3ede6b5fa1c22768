package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"basket-service/internal/basket/model"
	"basket-service/internal/basket/service"
	cmpmodel "basket-service/internal/compare/model"
	"basket-service/internal/fileio"
	"basket-service/internal/middleware"
)

type Handler struct {
	svc       *service.Service
	log       zerolog.Logger
	maxUpload int64
}

func New(svc *service.Service, logger zerolog.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 16 << 20
	}
	return &Handler{svc: svc, log: logger, maxUpload: maxUploadBytes}
}

// Register mounts the basket and compare routes. Callers put it behind
// middleware.Auth.
func (h *Handler) Register(r chi.Router) {
	r.Route("/baskets", func(r chi.Router) {
		r.Get("/", h.ListBaskets)
		r.Post("/", h.CreateBasket)
		r.Post("/ensure", h.EnsureBasket)
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", h.RenameBasket)
			r.Delete("/", h.DeleteBasket)
			r.Get("/items", h.ListItems)
			r.Post("/items", h.UpsertItem)
			r.Put("/items/{itemID}", h.UpdateItem)
			r.Delete("/items/{itemID}", h.DeleteItem)
			r.Post("/cleanup", h.CleanupBasket)
			r.Post("/import", h.ImportItems)
		})
	})
	r.Get("/compare", h.Compare)
	r.Get("/compare/export", h.ExportCompare)
	r.Post("/compare/best", h.CreateBest)
}

// ===== baskets =====

func (h *Handler) ListBaskets(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListBaskets(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.Basket{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateBasket(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBasketRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.CreateBasket(r.Context(), userID(r), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) EnsureBasket(w http.ResponseWriter, r *http.Request) {
	b, created, err := h.svc.EnsureBasket(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"basket": b, "created": created})
}

func (h *Handler) RenameBasket(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBasketRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.RenameBasket(r.Context(), userID(r), chi.URLParam(r, "id"), req.Name); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) DeleteBasket(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBasket(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== items =====

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	it := cmpmodel.Item{Name: req.Name, Quantity: 1}
	if req.Qty != nil {
		it.Quantity = *req.Qty
	}
	if req.Price != nil {
		it.UnitPrice = *req.Price
	}
	plan, err := h.svc.UpsertItem(r.Context(), userID(r), chi.URLParam(r, "id"), it)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := h.svc.UpdateItem(r.Context(), userID(r), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteItem(r.Context(), userID(r), chi.URLParam(r, "id"), chi.URLParam(r, "itemID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CleanupBasket(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.CleanupBasket(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ImportItems reads a csv/xls/xlsx upload and upserts its rows. Form
// fields name, qty and price override the column headers ('|' separated
// alternatives), header_row is 1-based.
func (h *Handler) ImportItems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.fail(w, r, badRequest("bad multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, badRequest("missing file: %v", err))
		return
	}
	defer file.Close()

	headerRow := atoi(r.FormValue("header_row"), 1)
	recs, err := fileio.ReadAnyMaps(file, header.Filename, headerRow)
	if err != nil {
		h.fail(w, r, badRequest("failed to read %s: %v", header.Filename, err))
		return
	}
	items := fileio.ToItems(recs, fileio.Mapping{
		NameKey:  r.FormValue("name"),
		QtyKey:   r.FormValue("qty"),
		PriceKey: r.FormValue("price"),
	})

	res, err := h.svc.ImportItems(r.Context(), userID(r), chi.URLParam(r, "id"), items)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info().
		Str("rid", middleware.GetRequestID(r)).
		Str("file", header.Filename).
		Int("records", len(recs)).
		Int("inserted", res.Inserted).
		Int("merged", res.Merged).
		Int("skipped", res.Skipped).
		Dur("elapsed", time.Since(start)).
		Msg("import done")
	writeJSON(w, http.StatusOK, res)
}

// ===== comparison =====

func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cmp, err := h.svc.CompareBaskets(r.Context(), userID(r), q.Get("a"), q.Get("b"), q.Get("mode"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, cmp)
}

func (h *Handler) ExportCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cmp, err := h.svc.CompareBaskets(r.Context(), userID(r), q.Get("a"), q.Get("b"), q.Get("mode"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// render into memory first so a failure can still become a JSON error
	var buf bytes.Buffer
	if err := fileio.WriteComparisonXLSX(&buf, cmp.BasketA.Name, cmp.BasketB.Name, cmp.Result); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(cmp)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) CreateBest(w http.ResponseWriter, r *http.Request) {
	var req model.CompareRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.CreateBestBasket(r.Context(), userID(r), req.A, req.B, req.Mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func exportFilename(cmp model.Comparison) string {
	name := fmt.Sprintf("compare-%s-vs-%s-%s.xlsx", cmp.BasketA.Name, cmp.BasketB.Name, cmp.Mode)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\' || r == '/' || r < 0x20 || r > 0x7E:
			return '_'
		case r == ' ':
			return '-'
		}
		return r
	}, name)
}
