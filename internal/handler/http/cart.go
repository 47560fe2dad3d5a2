package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/service"
	"github.com/VictorEZCodes/clothing-shop/pkg/httputil"
	"github.com/VictorEZCodes/clothing-shop/pkg/validator"
)

// CartHandler handles HTTP requests for the buyer's cart.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// ItemQuantityRequest is the JSON request body for setting a line quantity.
// Quantities below one are clamped to one.
type ItemQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartResponse is a cart with its computed totals.
type CartResponse struct {
	BuyerID   string            `json:"buyerId"`
	Lines     []domain.CartLine `json:"lines"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"itemCount"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func newCartResponse(c *domain.Cart) CartResponse {
	lines := c.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return CartResponse{
		BuyerID:   c.BuyerID,
		Lines:     lines,
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
		UpdatedAt: c.UpdatedAt,
	}
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Get(r.Context(), actorFrom(r).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(cart)})
}

// SetItem handles PUT /api/cart/items/{productId}
func (h *CartHandler) SetItem(w http.ResponseWriter, r *http.Request) {
	qty, ok := h.decodeQuantity(w, r)
	if !ok {
		return
	}

	cart, err := h.service.AddItem(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "productId"), qty)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(cart)})
}

// UpdateItemQuantity handles PATCH /api/cart/items/{productId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	qty, ok := h.decodeQuantity(w, r)
	if !ok {
		return
	}

	cart, err := h.service.UpdateQuantity(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "productId"), qty)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(cart)})
}

// RemoveItem handles DELETE /api/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.RemoveItem(r.Context(), actorFrom(r).UserID, chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(cart)})
}

// ClearCart handles DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), actorFrom(r).UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) decodeQuantity(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req ItemQuantityRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return 0, false
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return 0, false
	}
	return *req.Quantity, true
}
