package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/core/domain"
	"github.com/fidzella89/online-inventory/internal/core/service"
)

type HTTPHandler struct {
	products  *service.ProductService
	inventory *service.InventoryService
	orders    *service.OrderService
}

func NewHTTPHandler(products *service.ProductService, inventory *service.InventoryService, orders *service.OrderService) *HTTPHandler {
	return &HTTPHandler{products: products, inventory: inventory, orders: orders}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("POST /api/products", h.CreateProduct)
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.DeleteProduct)

	mux.HandleFunc("POST /api/inventory/adjustments", h.AdjustStock)
	mux.HandleFunc("GET /api/inventory/ledger", h.ListLedger)

	mux.HandleFunc("POST /api/orders", h.SettleOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
}

type productResponse struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		Stock:        p.Stock,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
	}
}

type ledgerEntryResponse struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	ProductSKU  string    `json:"product_sku"`
	Delta       int       `json:"quantity_change"`
	Timestamp   time.Time `json:"timestamp"`
	Reason      string    `json:"reason"`
}

func toLedgerEntryResponse(e domain.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:          e.ID,
		ProductID:   e.ProductID,
		ProductName: e.ProductName,
		ProductSKU:  e.ProductSKU,
		Delta:       e.Delta,
		Timestamp:   e.Timestamp,
		Reason:      e.Reason,
	}
}

type orderLineResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Total     decimal.Decimal     `json:"total"`
	Lines     []orderLineResponse `json:"lines"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		CreatedAt: o.CreatedAt,
		Total:     o.Total,
		Lines:     make([]orderLineResponse, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			ProductSKU:  l.ProductSKU,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    l.Subtotal(),
		})
	}
	return resp
}

type pagedResponse[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
}

type createProductRequest struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
	CategoryID   int64           `json:"category_id"`
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.products.Create(r.Context(), service.CreateProductInput{
		SKU:          req.SKU,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		InitialStock: req.InitialStock,
		CategoryID:   req.CategoryID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	var categoryID *int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		categoryID = &id
	}

	result, err := h.products.List(r.Context(), categoryID, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := pagedResponse[productResponse]{
		Items:      make([]productResponse, 0, len(result.Items)),
		TotalCount: result.TotalCount,
		Page:       result.Page,
		PageSize:   result.PageSize,
	}
	for i := range result.Items {
		resp.Items = append(resp.Items, toProductResponse(&result.Items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int64           `json:"category_id"`
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.products.Update(r.Context(), id, service.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustStockRequest struct {
	ProductID int64  `json:"product_id"`
	Delta     int    `json:"quantity_change"`
	Reason    string `json:"reason"`
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.inventory.Adjust(r.Context(), req.ProductID, req.Delta, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLedgerEntryResponse(*entry))
}

func (h *HTTPHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	var productID *int64
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid product_id")
			return
		}
		productID = &id
	}

	result, err := h.inventory.ListLedger(r.Context(), productID, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := pagedResponse[ledgerEntryResponse]{
		Items:      make([]ledgerEntryResponse, 0, len(result.Items)),
		TotalCount: result.TotalCount,
		Page:       result.Page,
		PageSize:   result.PageSize,
	}
	for _, e := range result.Items {
		resp.Items = append(resp.Items, toLedgerEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

type settleOrderRequest struct {
	RequestID string `json:"request_id"`
	Lines     []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"lines"`
}

func (h *HTTPHandler) SettleOrder(w http.ResponseWriter, r *http.Request) {
	var req settleOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	lines := make([]domain.OrderLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.OrderLineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	order, err := h.orders.Settle(r.Context(), req.RequestID, lines)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type orderSummaryResponse struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Total     decimal.Decimal `json:"total"`
	LineCount int             `json:"line_count"`
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	result, err := h.orders.ListOrders(r.Context(), page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := pagedResponse[orderSummaryResponse]{
		Items:      make([]orderSummaryResponse, 0, len(result.Items)),
		TotalCount: result.TotalCount,
		Page:       result.Page,
		PageSize:   result.PageSize,
	}
	for _, s := range result.Items {
		resp.Items = append(resp.Items, orderSummaryResponse{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			Total:     s.Total,
			LineCount: s.LineCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

// writeDomainError maps the error taxonomy to HTTP statuses. Insufficient
// stock and invalid adjustments are caller data errors (422, never retried
// here); concurrency conflicts are 409 and safe for the caller to retry in
// full.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		insufficientErr *domain.InsufficientStockError
		adjustmentErr   *domain.InvalidAdjustmentError
	)
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrSKUExists),
		errors.Is(err, domain.ErrProductInUse),
		errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &insufficientErr), errors.As(err, &adjustmentErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
