package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"product-catalog-engine/internal/cart"
	"product-catalog-engine/internal/catalog"
	"product-catalog-engine/internal/domain"
	"product-catalog-engine/internal/engine"
	"product-catalog-engine/internal/loader"
	"product-catalog-engine/internal/view"
)

// MockProductSource is a mock implementation of store.ProductSource
type MockProductSource struct {
	mock.Mock
}

func (m *MockProductSource) ListProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockProductSource) ListRecommendations(ctx context.Context, limit int) ([]domain.Product, error) {
	args := m.Called(ctx, limit)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

// Helper function to get a pointer (useful for optional fields in domain structs)
func PtrTo[T any](v T) *T {
	return &v
}

func testProducts(n int) []domain.Product {
	categories := []domain.Category{domain.CategoryElectronics, domain.CategoryFood}
	products := make([]domain.Product, n)
	for i := range products {
		products[i] = domain.Product{
			ID:        int64(i + 1),
			Name:      "Product",
			Price:     float64(10 * (i + 1)),
			Category:  categories[i%len(categories)],
			Rating:    4,
			InStock:   i%5 != 4,
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return products
}

func newTestEngine(t *testing.T, items []domain.Product) (*engine.Engine, *MockProductSource) {
	t.Helper()
	src := new(MockProductSource)
	src.On("ListProducts", mock.Anything).Return(items, nil).Maybe()
	src.On("ListRecommendations", mock.Anything, 10).Return(items[:min(len(items), 7)], nil).Maybe()

	logger := zap.NewNop()
	e := engine.New(
		catalog.NewStore(12, logger),
		cart.NewAggregator(logger),
		loader.NewController(domain.NewValidator(), logger),
		src,
		engine.Config{RecommendationLimit: 10, VirtualizeThreshold: 24},
		logger,
	)
	if len(items) > 0 {
		require.NoError(t, e.LoadAll(context.Background()))
	}
	return e, src
}

// Helper for setting up tests with a chi router and handler
func setupTestChiServer(t *testing.T, e *engine.Engine) *httptest.Server {
	handler := NewHTTPHandler(e, zap.NewNop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return httptest.NewServer(router)
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func decodeCatalog(t *testing.T, res *http.Response) CatalogResponse {
	t.Helper()
	var out CatalogResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestHTTPHandler_GetCatalog(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(20))
	server := setupTestChiServer(t, e)
	defer server.Close()

	res, err := http.Get(server.URL + "/api/v1/catalog?width=800")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	out := decodeCatalog(t, res)
	assert.Equal(t, view.StatusReady, out.Status)
	assert.Equal(t, view.ModePaged, out.Mode)
	assert.Len(t, out.Data, 12)
	assert.Equal(t, PaginationInfo{Page: 1, Limit: 12, TotalItems: 20, TotalPages: 2}, out.Pagination)
	assert.Equal(t, 3, out.ItemsPerRow)
	assert.Equal(t, domain.LoadFulfilled, out.Load.Status)
}

func TestHTTPHandler_GetCatalog_InvalidWidth(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(3))
	server := setupTestChiServer(t, e)
	defer server.Close()

	res, err := http.Get(server.URL + "/api/v1/catalog?width=wide")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHTTPHandler_UpdateCriteria(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(20))
	server := setupTestChiServer(t, e)
	defer server.Close()

	res := doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/criteria", map[string]interface{}{
		"min_price":     100,
		"sort_by":       "price-desc",
		"in_stock_only": true,
	})
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	out := decodeCatalog(t, res)
	require.NotEmpty(t, out.Data)
	assert.Equal(t, int64(19), out.Data[0].ID, "product 20 is out of stock")
	for _, p := range out.Data {
		assert.GreaterOrEqual(t, p.Price, 100.0)
		assert.True(t, p.InStock)
	}
	assert.Equal(t, 2, out.ActiveFilters)

	// null clears a single field, absent fields stay.
	res2 := doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/criteria", `{"min_price": null}`)
	defer res2.Body.Close()
	require.Equal(t, http.StatusOK, res2.StatusCode)
	crit := e.Catalog.Criteria()
	assert.Nil(t, crit.MinPrice)
	assert.Equal(t, domain.SortPriceDesc, crit.SortBy)
}

func TestHTTPHandler_UpdateCriteria_Invalid(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(5))
	server := setupTestChiServer(t, e)
	defer server.Close()

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown sort key", body: `{"sort_by": "cheapest"}`},
		{name: "unknown category", body: `{"category": "toys"}`},
		{name: "inverted price range", body: `{"min_price": 500, "max_price": 100}`},
		{name: "negative price", body: `{"min_price": -1}`},
		{name: "unknown field", body: `{"colour": "red"}`},
		{name: "malformed json", body: `{"min_price":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/criteria", tt.body)
			defer res.Body.Close()
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&errResp))
			assert.NotEmpty(t, errResp.Error)
		})
	}
	assert.Equal(t, domain.FilterCriteria{}, e.Catalog.Criteria(), "rejected patches change nothing")
}

func TestHTTPHandler_ResetCriteria(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(20))
	_, err := e.Catalog.UpdateCriteria(domain.CriteriaPatch{SearchTerm: domain.SetTo("nothing matches")})
	require.NoError(t, err)
	server := setupTestChiServer(t, e)
	defer server.Close()

	res := doJSON(t, http.MethodDelete, server.URL+"/api/v1/catalog/criteria", nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeCatalog(t, res)
	assert.Equal(t, 20, out.Pagination.TotalItems)
	assert.Equal(t, 0, out.ActiveFilters)
}

func TestHTTPHandler_EmptyResultIsNotLoading(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(5))
	server := setupTestChiServer(t, e)
	defer server.Close()

	res := doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/criteria", `{"search_term": "zzz"}`)
	defer res.Body.Close()
	out := decodeCatalog(t, res)
	assert.Equal(t, view.StatusEmpty, out.Status)
	assert.NotNil(t, out.Data)
	assert.Empty(t, out.Data)
}

func TestHTTPHandler_SetPagination(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(30))
	server := setupTestChiServer(t, e)
	defer server.Close()

	// 30 items exceed the virtualize threshold, so the cursor moves but the
	// whole view is returned.
	res := doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/pagination", PaginationInput{Page: PtrTo(3)})
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeCatalog(t, res)
	assert.Equal(t, 3, out.Pagination.Page)
	assert.Equal(t, 3, out.Pagination.TotalPages)
	assert.Equal(t, view.ModeVirtualized, out.Mode)
	assert.Len(t, out.Data, 30)

	res2 := doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/pagination", `{"page_size": 0}`)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)

	res3 := doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/pagination", `{"page_size": 500}`)
	defer res3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res3.StatusCode)
	assert.Equal(t, domain.Pagination{Page: 3, PageSize: 12}, e.Catalog.Pagination())
}

func TestHTTPHandler_PagedSliceAfterFiltering(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(30))
	server := setupTestChiServer(t, e)
	defer server.Close()

	// Electronics are the odd ids: 15 items, paged.
	res := doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/criteria", `{"category": "electronics"}`)
	res.Body.Close()
	res = doJSON(t, http.MethodPatch, server.URL+"/api/v1/catalog/pagination", `{"page": 2}`)
	defer res.Body.Close()
	out := decodeCatalog(t, res)
	assert.Equal(t, view.ModePaged, out.Mode)
	require.Len(t, out.Data, 3)
	assert.Equal(t, []int64{25, 27, 29}, []int64{out.Data[0].ID, out.Data[1].ID, out.Data[2].ID})
}

func TestHTTPHandler_PricePresets(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(20))
	server := setupTestChiServer(t, e)
	defer server.Close()

	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/catalog/price-presets/100-500", nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeCatalog(t, res)
	assert.Equal(t, 11, out.Pagination.TotalItems)

	res2 := doJSON(t, http.MethodPost, server.URL+"/api/v1/catalog/price-presets/free", nil)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotFound, res2.StatusCode)

	res3, err := http.Get(server.URL + "/api/v1/catalog/price-presets")
	require.NoError(t, err)
	defer res3.Body.Close()
	var presets []catalog.PricePreset
	require.NoError(t, json.NewDecoder(res3.Body).Decode(&presets))
	assert.Len(t, presets, len(catalog.PricePresets))
}

func TestHTTPHandler_GetFacets(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(10))
	server := setupTestChiServer(t, e)
	defer server.Close()

	res, err := http.Get(server.URL + "/api/v1/catalog/facets")
	require.NoError(t, err)
	defer res.Body.Close()
	var f catalog.Facets
	require.NoError(t, json.NewDecoder(res.Body).Decode(&f))
	assert.Equal(t, catalog.Availability{InStock: 8, OutOfStock: 2}, f.Availability)
	require.NotNil(t, f.PriceRange)
	assert.Equal(t, catalog.PriceRange{Min: 10, Max: 100}, *f.PriceRange)
}

func TestHTTPHandler_GetRecommendations(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(20))
	server := setupTestChiServer(t, e)
	defer server.Close()

	_, err := e.Catalog.UpdateCriteria(domain.CriteriaPatch{SearchTerm: domain.SetTo("nothing")})
	require.NoError(t, err)

	res, err := http.Get(server.URL + "/api/v1/recommendations")
	require.NoError(t, err)
	defer res.Body.Close()
	var out RecommendationsResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Len(t, out.Slides, 2, "recommendations ignore the active criteria")
	assert.Len(t, out.Slides[0], 5)
	assert.Len(t, out.Slides[1], 2)
	assert.Equal(t, domain.LoadFulfilled, out.Load.Status)
}

func TestHTTPHandler_Cart(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(10))
	server := setupTestChiServer(t, e)
	defer server.Close()

	for _, q := range []int{2, 3} {
		res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart/items", CartItemInput{ProductID: 7, Quantity: q})
		require.Equal(t, http.StatusOK, res.StatusCode)
		res.Body.Close()
	}

	tests := []struct {
		name string
		body CartItemInput
		want int
	}{
		{name: "zero quantity", body: CartItemInput{ProductID: 7, Quantity: 0}, want: http.StatusBadRequest},
		{name: "negative quantity", body: CartItemInput{ProductID: 7, Quantity: -2}, want: http.StatusBadRequest},
		{name: "unknown product", body: CartItemInput{ProductID: 404, Quantity: 1}, want: http.StatusNotFound},
		{name: "out of stock", body: CartItemInput{ProductID: 5, Quantity: 1}, want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart/items", tt.body)
			defer res.Body.Close()
			assert.Equal(t, tt.want, res.StatusCode)
		})
	}

	res, err := http.Get(server.URL + "/api/v1/cart")
	require.NoError(t, err)
	defer res.Body.Close()
	var out CartResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, []domain.CartLine{{ProductID: 7, Quantity: 5}}, out.Lines)
	assert.Equal(t, 5, out.TotalQuantity)
}

func TestHTTPHandler_Loads(t *testing.T) {
	e, src := newTestEngine(t, testProducts(4))
	server := setupTestChiServer(t, e)
	defer server.Close()

	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/loads/catalog", nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	var ticket loader.Ticket
	require.NoError(t, json.NewDecoder(res.Body).Decode(&ticket))
	assert.Equal(t, domain.CollectionCatalog, ticket.Collection)
	assert.NotEmpty(t, ticket.ID)

	require.Eventually(t, func() bool {
		s := e.Loads.State(domain.CollectionCatalog)
		return s.TicketID == ticket.ID && s.Status == domain.LoadFulfilled
	}, time.Second, 5*time.Millisecond)

	res2 := doJSON(t, http.MethodPost, server.URL+"/api/v1/loads/wishlist", nil)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotFound, res2.StatusCode)

	res3, err := http.Get(server.URL + "/api/v1/loads")
	require.NoError(t, err)
	defer res3.Body.Close()
	var states map[domain.Collection]domain.LoadState
	require.NoError(t, json.NewDecoder(res3.Body).Decode(&states))
	assert.Len(t, states, 2)
	src.AssertCalled(t, "ListProducts", mock.Anything)
}

func TestHTTPHandler_Healthz(t *testing.T) {
	idle, _ := newTestEngine(t, nil)
	server := setupTestChiServer(t, idle)
	res, err := http.Get(server.URL + "/api/v1/healthz")
	require.NoError(t, err)
	res.Body.Close()
	server.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	loaded, _ := newTestEngine(t, testProducts(2))
	server = setupTestChiServer(t, loaded)
	defer server.Close()
	res, err = http.Get(server.URL + "/api/v1/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestHTTPHandler_InvalidWidthRejectedBeforeMutation(t *testing.T) {
	e, _ := newTestEngine(t, testProducts(20))
	_, err := e.Catalog.SetPagination(domain.PaginationPatch{Page: PtrTo(2)})
	require.NoError(t, err)
	server := setupTestChiServer(t, e)
	defer server.Close()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"update criteria", http.MethodPatch, "/api/v1/catalog/criteria", `{"min_price": 200}`},
		{"reset criteria", http.MethodDelete, "/api/v1/catalog/criteria", nil},
		{"set pagination", http.MethodPatch, "/api/v1/catalog/pagination", `{"page": 1}`},
		{"apply preset", http.MethodPost, "/api/v1/catalog/price-presets/100-500", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := e.Catalog.Snapshot()
			res := doJSON(t, tt.method, server.URL+tt.path+"?width=bad", tt.body)
			defer res.Body.Close()
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, before, e.Catalog.Snapshot())
		})
	}
	assert.Nil(t, e.Catalog.Criteria().MinPrice)
	assert.Equal(t, 2, e.Catalog.Pagination().Page)
}
