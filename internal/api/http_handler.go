package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"product-catalog-engine/internal/catalog"
	"product-catalog-engine/internal/domain"
	"product-catalog-engine/internal/engine"
	"product-catalog-engine/internal/view"
)

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	engine   *engine.Engine
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(e *engine.Engine, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		engine:   e,
		validate: validator.New(),
		logger:   logger.Named("http"),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			zap.L().Error("failed to encode JSON response", zap.Error(err))
		}
	}
}

// statusForError maps engine errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidSortKey),
		errors.Is(err, domain.ErrInvalidPriceRange),
		errors.Is(err, domain.ErrInvalidPagination),
		errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInvalidCollection),
		errors.Is(err, catalog.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) respondWithEngineError(w http.ResponseWriter, op string, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.Error(err))
		respondWithError(w, code, "Internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

func decodeStrict(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// --- Catalog Handlers ---

// PaginationInfo matches the pagination envelope of list responses.
type PaginationInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// CatalogResponse is the rendered catalog page.
type CatalogResponse struct {
	Data          []domain.Product `json:"data"`
	Pagination    PaginationInfo   `json:"pagination"`
	Status        view.Status      `json:"status"`
	Mode          view.Mode        `json:"mode"`
	ItemsPerRow   int              `json:"items_per_row"`
	Rows          []view.Row       `json:"rows,omitempty"`
	Placeholders  int              `json:"placeholders,omitempty"`
	ActiveFilters int              `json:"active_filters"`
	Load          domain.LoadState `json:"load"`
}

func newCatalogResponse(p view.Page) CatalogResponse {
	return CatalogResponse{
		Data: p.Items,
		Pagination: PaginationInfo{
			Page:       p.Pagination.Page,
			Limit:      p.Pagination.PageSize,
			TotalItems: p.TotalItems,
			TotalPages: p.TotalPages,
		},
		Status:        p.Status,
		Mode:          p.Mode,
		ItemsPerRow:   p.ItemsPerRow,
		Rows:          p.Rows,
		Placeholders:  p.Placeholders,
		ActiveFilters: p.ActiveFilters,
		Load:          p.Load,
	}
}

// viewportWidth reads the optional width query parameter.
func viewportWidth(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("width")
	if raw == "" {
		return 0, true
	}
	width, err := strconv.Atoi(raw)
	if err != nil || width < 0 {
		return 0, false
	}
	return width, true
}

// requestWidth reads ?width and writes the 400 itself when it is invalid.
// Mutating handlers call it before touching the engine.
func requestWidth(w http.ResponseWriter, r *http.Request) (int, bool) {
	width, ok := viewportWidth(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid width: must be a non-negative integer")
	}
	return width, ok
}

func (h *HTTPHandler) respondWithPage(w http.ResponseWriter, width, code int) {
	respondWithJSON(w, code, newCatalogResponse(h.engine.Page(width)))
}

func (h *HTTPHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	width, ok := requestWidth(w, r)
	if !ok {
		return
	}
	h.respondWithPage(w, width, http.StatusOK)
}

func (h *HTTPHandler) GetCriteria(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.engine.Catalog.Criteria())
}

func (h *HTTPHandler) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	width, ok := requestWidth(w, r)
	if !ok {
		return
	}
	var patch domain.CriteriaPatch
	if err := decodeStrict(r, &patch); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if _, err := h.engine.Catalog.UpdateCriteria(patch); err != nil {
		h.respondWithEngineError(w, "UpdateCriteria", err)
		return
	}
	h.respondWithPage(w, width, http.StatusOK)
}

func (h *HTTPHandler) ResetCriteria(w http.ResponseWriter, r *http.Request) {
	width, ok := requestWidth(w, r)
	if !ok {
		return
	}
	h.engine.Catalog.ResetCriteria()
	h.respondWithPage(w, width, http.StatusOK)
}

// PaginationInput defines the expected input for moving the page cursor.
type PaginationInput struct {
	Page     *int `json:"page" validate:"omitempty,gt=0"`
	PageSize *int `json:"page_size" validate:"omitempty,gt=0,lte=100"`
}

func (h *HTTPHandler) SetPagination(w http.ResponseWriter, r *http.Request) {
	width, ok := requestWidth(w, r)
	if !ok {
		return
	}
	var input PaginationInput
	if err := decodeStrict(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	if _, err := h.engine.Catalog.SetPagination(domain.PaginationPatch{Page: input.Page, PageSize: input.PageSize}); err != nil {
		h.respondWithEngineError(w, "SetPagination", err)
		return
	}
	h.respondWithPage(w, width, http.StatusOK)
}

func (h *HTTPHandler) ListPricePresets(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, catalog.PricePresets)
}

func (h *HTTPHandler) ApplyPricePreset(w http.ResponseWriter, r *http.Request) {
	width, ok := requestWidth(w, r)
	if !ok {
		return
	}
	patch, err := catalog.PresetPatch(chi.URLParam(r, "preset"))
	if err != nil {
		h.respondWithEngineError(w, "ApplyPricePreset", err)
		return
	}
	if _, err := h.engine.Catalog.UpdateCriteria(patch); err != nil {
		h.respondWithEngineError(w, "ApplyPricePreset", err)
		return
	}
	h.respondWithPage(w, width, http.StatusOK)
}

func (h *HTTPHandler) GetFacets(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.engine.Catalog.Facets())
}

// RecommendationsResponse carries the carousel slides.
type RecommendationsResponse struct {
	Slides [][]domain.Product `json:"slides"`
	Load   domain.LoadState   `json:"load"`
}

func (h *HTTPHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	slides, state := h.engine.Recommendations()
	respondWithJSON(w, http.StatusOK, RecommendationsResponse{Slides: slides, Load: state})
}

// --- Load Handlers ---

func (h *HTTPHandler) ListLoads(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.engine.Loads.States())
}

// StartLoad begins a background load and answers with its ticket. The fetch
// outlives the request.
func (h *HTTPHandler) StartLoad(w http.ResponseWriter, r *http.Request) {
	coll, err := domain.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		h.respondWithEngineError(w, "StartLoad", err)
		return
	}
	task, err := h.engine.Load(context.WithoutCancel(r.Context()), coll)
	if err != nil {
		h.respondWithEngineError(w, "StartLoad", err)
		return
	}
	h.logger.Info("load requested", zap.String("collection", string(coll)), zap.String("ticket", task.Ticket.ID))
	respondWithJSON(w, http.StatusAccepted, task.Ticket)
}

// --- Cart Handlers ---

// CartItemInput defines the expected input for adding to the cart.
type CartItemInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var input CartItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()

	if err := h.validate.Struct(input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	line, err := h.engine.AddToCart(input.ProductID, input.Quantity)
	if err != nil {
		h.respondWithEngineError(w, "AddToCart", err)
		return
	}
	respondWithJSON(w, http.StatusOK, line)
}

// CartResponse lists the ledger.
type CartResponse struct {
	Lines         []domain.CartLine `json:"lines"`
	TotalQuantity int               `json:"total_quantity"`
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, CartResponse{
		Lines:         h.engine.Cart.Lines(),
		TotalQuantity: h.engine.Cart.TotalQuantity(),
	})
}

func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	state := h.engine.Loads.State(domain.CollectionCatalog)
	code := http.StatusOK
	if state.Status != domain.LoadFulfilled && h.engine.Catalog.ItemCount() == 0 {
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, map[string]interface{}{"catalog": state})
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/healthz", h.Healthz)

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/", h.GetCatalog)
		r.Get("/facets", h.GetFacets)
		r.Route("/criteria", func(r chi.Router) {
			r.Get("/", h.GetCriteria)
			r.Patch("/", h.UpdateCriteria)
			r.Delete("/", h.ResetCriteria)
		})
		r.Patch("/pagination", h.SetPagination)
		r.Get("/price-presets", h.ListPricePresets)
		r.Post("/price-presets/{preset}", h.ApplyPricePreset)
	})

	r.Get("/api/v1/recommendations", h.GetRecommendations)

	r.Route("/api/v1/loads", func(r chi.Router) {
		r.Get("/", h.ListLoads)
		r.Post("/{collection}", h.StartLoad)
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/items", h.AddToCart)
	})
}
