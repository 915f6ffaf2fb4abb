package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/internal/app"
	"github.com/sdsinventory/backend/internal/inventory"
	"github.com/sdsinventory/backend/internal/masterdata"
	"github.com/sdsinventory/backend/internal/observability"
	"github.com/sdsinventory/backend/internal/platform/memstore"
	"github.com/sdsinventory/backend/internal/quantity"
	"github.com/sdsinventory/backend/internal/recipes"
	"github.com/sdsinventory/backend/internal/sales"
)

func ptr(v float64) *float64 { return &v }

type apiFixture struct {
	store   *memstore.Store
	router  http.Handler
	metrics *observability.Metrics
	product masterdata.Product
	recipe  recipes.Recipe
	paper   inventory.Supply
}

func newAPI(t *testing.T, cfg *app.Config, checks map[string]app.HealthCheck) apiFixture {
	t.Helper()
	store := memstore.New()
	u := store.SeedUnit("unidad", "Unidad")
	paper := store.SeedSupply("Hoja", u, 10, 0.5)
	product := store.SeedProduct("Volante", masterdata.ProductFixed, 0.4)
	recipe := store.SeedRecipe(product, "Volante carta", recipes.Item{SupplyID: paper.ID, QtyBase: ptr(2)})

	metrics := observability.NewMetrics()
	engine := recipes.NewEngine(quantity.NewPolicy(nil))
	salesSvc := sales.NewService(store.Sales(), engine, sales.Options{Idempotency: store, Audit: store, Observer: metrics})

	router := app.NewRouter(app.RouterParams{
		Config:            cfg,
		Metrics:           metrics,
		Checks:            checks,
		MasterDataHandler: masterdata.NewHandler(nil, masterdata.NewService(store.Masterdata(), nil)),
		InventoryHandler:  inventory.NewHandler(nil, inventory.NewService(store.Inventory(), store, nil)),
		SalesHandler:      sales.NewHandler(nil, salesSvc),
	})
	return apiFixture{store: store, router: router, metrics: metrics, product: product, recipe: recipe, paper: paper}
}

func (f apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f apiFixture) saleBody(qty float64) map[string]any {
	return map[string]any{
		"lines": []map[string]any{{
			"product_id": f.product.ID,
			"recipe_id":  f.recipe.ID,
			"qty":        qty,
		}},
		"margin": 0.5,
	}
}

func TestHealthz(t *testing.T) {
	f := newAPI(t, &app.Config{}, nil)
	rr := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestHealthzReportsFailingCheck(t *testing.T) {
	f := newAPI(t, &app.Config{}, map[string]app.HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rr := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.JSONEq(t, `{"status":"degraded","postgres":"ok","redis":"unavailable"}`, rr.Body.String())
}

func TestCreateSaleThroughAPI(t *testing.T) {
	f := newAPI(t, &app.Config{}, nil)

	rr := f.do(t, http.MethodPost, "/api/v1/sales", f.saleBody(2))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var sale sales.Sale
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sale))
	require.Equal(t, 4.0, sale.TotalSale)
	require.Equal(t, 2.0, sale.TotalCost)

	rr = f.do(t, http.MethodGet, "/api/v1/supplies/"+f.paper.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var supply inventory.Supply
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &supply))
	require.Equal(t, 6.0, supply.StockOnHand)

	rr = f.do(t, http.MethodPost, "/api/v1/sales/"+sale.ID.String()+"/void", map[string]string{"reason": "error de captura"})
	require.Equal(t, http.StatusOK, rr.Code)
	var res sales.VoidResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, sales.VoidApplied, res.Status)

	metrics := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), `sds_inventory_movements_total{ref_type="sale",type="OUT"} 1`)
	require.Contains(t, metrics.Body.String(), `sds_inventory_movements_total{ref_type="sale_void",type="IN"} 1`)
}

func TestErrorsRenderAsProblems(t *testing.T) {
	f := newAPI(t, &app.Config{}, nil)

	rr := f.do(t, http.MethodPost, "/api/v1/sales", f.saleBody(50))
	require.Equal(t, http.StatusConflict, rr.Code)
	var problem map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "insufficient_stock", problem["type"])
	require.Equal(t, f.paper.ID.String(), problem["supply_id"])
	require.Equal(t, 100.0, problem["required"])
	require.Equal(t, 10.0, problem["available"])

	rr = f.do(t, http.MethodPost, "/api/v1/sales", map[string]any{"lines": []any{}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "invalid_input")

	rr = f.do(t, http.MethodGet, "/api/v1/sales/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/nowhere", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "/nowhere"))
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	f := newAPI(t, &app.Config{RateLimitPerMinute: 1}, nil)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/sales", f.saleBody(1)).Code)
	rr := f.do(t, http.MethodPost, "/api/v1/sales", f.saleBody(1))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/sales", nil).Code)
	}
}
