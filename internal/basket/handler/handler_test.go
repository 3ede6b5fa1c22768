package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	excelize "github.com/xuri/excelize/v2"

	"basket-service/internal/basket/model"
	"basket-service/internal/basket/service"
	"basket-service/internal/basket/store"
	cmpmodel "basket-service/internal/compare/model"
	cmpsvc "basket-service/internal/compare/service"
	"basket-service/internal/config"
	"basket-service/internal/fileio"
	"basket-service/internal/middleware"
)

type api struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctx := context.Background()
	db, err := config.OpenDB(ctx, config.Config{DBDriver: "sqlite", DatabaseURL: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, config.RunMigrations(ctx, db))

	svc := service.New(store.New(db, "sqlite"), zerolog.Nop(), cmpmodel.DefaultOptions(), "Nakup")
	h := New(svc, zerolog.Nop(), 1<<20)

	r := chi.NewRouter()
	r.Use(middleware.LimitBytes(1 << 20))
	// tests inject the user the way Auth does
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := req.Header.Get("X-Test-User")
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), user)))
		})
	})
	h.Register(r)
	return &api{t: t, router: r}
}

func (a *api) do(user, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-Test-User", user)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *api) json(user, method, path string, in, out any) int {
	a.t.Helper()
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		require.NoError(a.t, err)
		body = bytes.NewReader(b)
	}
	rec := a.do(user, method, path, body, "application/json")
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (a *api) basket(user, name string, items ...cmpmodel.Item) model.Basket {
	a.t.Helper()
	var b model.Basket
	require.Equal(a.t, http.StatusCreated, a.json(user, http.MethodPost, "/baskets", map[string]string{"name": name}, &b))
	for _, it := range items {
		require.Equal(a.t, http.StatusOK, a.json(user, http.MethodPost, "/baskets/"+b.ID+"/items", it, nil))
	}
	return b
}

func TestBasketCRUD(t *testing.T) {
	a := newAPI(t)

	var ensured struct {
		Basket  model.Basket `json:"basket"`
		Created bool         `json:"created"`
	}
	require.Equal(t, http.StatusOK, a.json("alice", http.MethodPost, "/baskets/ensure", nil, &ensured))
	assert.True(t, ensured.Created)
	assert.Equal(t, "Nakup", ensured.Basket.Name)

	b := a.basket("alice", "Albert")
	assert.Equal(t, http.StatusOK, a.json("alice", http.MethodPut, "/baskets/"+b.ID, map[string]string{"name": "Albert Hypermarket"}, nil))

	var list []model.Basket
	require.Equal(t, http.StatusOK, a.json("alice", http.MethodGet, "/baskets", nil, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Albert Hypermarket", list[0].Name)
	assert.Equal(t, "Nakup", list[1].Name)

	var empty []model.Basket
	require.Equal(t, http.StatusOK, a.json("bob", http.MethodGet, "/baskets", nil, &empty))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	var e map[string]string
	assert.Equal(t, http.StatusBadRequest, a.json("alice", http.MethodPost, "/baskets", map[string]string{"name": " "}, &e))
	assert.Equal(t, "please enter basket name", e["error"])
	assert.Equal(t, http.StatusNotFound, a.json("bob", http.MethodDelete, "/baskets/"+b.ID, nil, nil))
	assert.Equal(t, http.StatusNoContent, a.json("alice", http.MethodDelete, "/baskets/"+b.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.json("alice", http.MethodGet, "/baskets/"+b.ID+"/items", nil, nil))
}

func TestItemEndpoints(t *testing.T) {
	a := newAPI(t)
	b := a.basket("alice", "Tesco")
	base := "/baskets/" + b.ID + "/items"

	var plan cmpsvc.UpsertPlan
	require.Equal(t, http.StatusOK, a.json("alice", http.MethodPost, base, map[string]any{"name": "Mléko"}, &plan))
	assert.Equal(t, cmpsvc.ActionInserted, plan.Action)
	assert.Equal(t, 1.0, plan.Qty)

	require.Equal(t, http.StatusOK, a.json("alice", http.MethodPost, base, map[string]any{"name": "MLEKO", "qty": 2, "price": 18}, &plan))
	assert.Equal(t, cmpsvc.ActionMerged, plan.Action)
	assert.Equal(t, 3.0, plan.Qty)

	var items []model.Item
	require.Equal(t, http.StatusOK, a.json("alice", http.MethodGet, base, nil, &items))
	require.Len(t, items, 1)
	assert.Equal(t, 0.0, items[0].Price)

	var it model.Item
	require.Equal(t, http.StatusOK, a.json("alice", http.MethodPut, base+"/"+items[0].ID, map[string]any{"price": 19.9}, &it))
	assert.Equal(t, 19.9, it.Price)
	assert.Equal(t, 3.0, it.Qty)

	assert.Equal(t, http.StatusBadRequest, a.json("alice", http.MethodPut, base+"/"+items[0].ID, map[string]any{"qty": -2}, nil))
	assert.Equal(t, http.StatusNotFound, a.json("alice", http.MethodPut, base+"/nope", map[string]any{"qty": 2}, nil))

	rec := a.do("alice", http.MethodPost, base, strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid json")

	rec = a.do("alice", http.MethodPost, base, strings.NewReader(`{"name":"`+strings.Repeat("x", 2<<20)+`"}`), "application/json")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Equal(t, http.StatusNoContent, a.json("alice", http.MethodDelete, base+"/"+items[0].ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.json("alice", http.MethodDelete, base+"/"+items[0].ID, nil, nil))

	var cleaned model.CleanupResult
	require.Equal(t, http.StatusOK, a.json("alice", http.MethodPost, "/baskets/"+b.ID+"/cleanup", nil, &cleaned))
	assert.Equal(t, model.CleanupResult{OK: true}, cleaned)
}

func TestCompareEndpoints(t *testing.T) {
	a := newAPI(t)
	ba := a.basket("alice", "Albert",
		cmpmodel.Item{Name: "Mléko", Quantity: 1, UnitPrice: 20},
		cmpmodel.Item{Name: "Chléb", Quantity: 2, UnitPrice: 30},
	)
	bb := a.basket("alice", "Tesco",
		cmpmodel.Item{Name: "mleko", Quantity: 1, UnitPrice: 18},
		cmpmodel.Item{Name: "chleba", Quantity: 1, UnitPrice: 35},
	)
	q := "?a=" + ba.ID + "&b=" + bb.ID

	var cmp model.Comparison
	require.Equal(t, http.StatusOK, a.json("alice", http.MethodGet, "/compare"+q, nil, &cmp))
	assert.Equal(t, "Albert", cmp.BasketA.Name)
	assert.Equal(t, "Tesco", cmp.BasketB.Name)
	assert.Equal(t, cmpmodel.ModeUnit, cmp.Mode)
	assert.Len(t, cmp.Rows, 2)
	assert.Equal(t, 78.0, cmp.Best.Total)

	require.Equal(t, http.StatusOK, a.json("alice", http.MethodGet, "/compare"+q+"&mode=line", nil, &cmp))
	assert.Equal(t, cmpmodel.ModeLine, cmp.Mode)

	assert.Equal(t, http.StatusBadRequest, a.json("alice", http.MethodGet, "/compare?a="+ba.ID+"&b="+ba.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.json("bob", http.MethodGet, "/compare"+q, nil, nil))

	rec := a.do("alice", http.MethodGet, "/compare/export"+q, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="compare-Albert-vs-Tesco-unit.xlsx"`)
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, []string{fileio.SheetComparison, fileio.SheetBest}, f.GetSheetList())
	require.NoError(t, f.Close())

	var best model.Basket
	require.Equal(t, http.StatusCreated, a.json("alice", http.MethodPost, "/compare/best", map[string]string{"a": ba.ID, "b": bb.ID}, &best))
	assert.Equal(t, "Best (Albert vs Tesco)", best.Name)
}

func TestImportEndpoint(t *testing.T) {
	a := newAPI(t)
	b := a.basket("alice", "Lidl", cmpmodel.Item{Name: "Cukr", Quantity: 1, UnitPrice: 25})

	upload := func(filename, content string, fields map[string]string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		for k, v := range fields {
			require.NoError(t, mw.WriteField(k, v))
		}
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())
		return a.do("alice", http.MethodPost, "/baskets/"+b.ID+"/import", &body, mw.FormDataContentType())
	}

	rec := upload("lidl.csv", "Zboží;Ks;Kč/ks\nCukr;1;25\nMouka;2;19,90\nMouka;1;17,50\n", map[string]string{
		"name": "zbozi", "qty": "ks", "price": "kc ks",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res model.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, 1, res.Skipped)

	var items []model.Item
	require.Equal(t, http.StatusOK, a.json("alice", http.MethodGet, "/baskets/"+b.ID+"/items", nil, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "Mouka", items[1].Name)
	assert.Equal(t, 3.0, items[1].Qty)
	assert.Equal(t, 17.5, items[1].Price)

	rec = upload("basket.pdf", "%PDF", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file")

	rec = a.do("alice", http.MethodPost, "/baskets/"+b.ID+"/import", strings.NewReader("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportFilename(t *testing.T) {
	cmp := model.Comparison{
		BasketA: model.Basket{Name: "Můj košík"},
		BasketB: model.Basket{Name: `A/B "x"`},
		Result:  cmpmodel.Result{Mode: cmpmodel.ModeLine},
	}
	assert.Equal(t, "compare-M_j-ko__k-vs-A_B-_x_-line.xlsx", exportFilename(cmp))
}
