package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/service"
	"github.com/VictorEZCodes/clothing-shop/pkg/httputil"
	"github.com/VictorEZCodes/clothing-shop/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// OrderItemRequest is the JSON request body for an order line item.
// Product is accepted as an alias of ProductRef.
type OrderItemRequest struct {
	ProductRef string `json:"productRef" validate:"required_without=Product"`
	Product    string `json:"product" validate:"required_without=ProductRef"`
	Quantity   int    `json:"quantity" validate:"required,gte=1,lte=2147483647"`
}

func (r OrderItemRequest) ref() string {
	if r.ProductRef != "" {
		return r.ProductRef
	}
	return r.Product
}

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	Items            []OrderItemRequest     `json:"items" validate:"required,min=1,dive"`
	TotalAmount      decimal.Decimal        `json:"totalAmount" validate:"money"`
	Currency         string                 `json:"currency" validate:"omitempty,len=3"`
	ShippingDetails  domain.ShippingDetails `json:"shippingDetails"`
	PaymentReference string                 `json:"paymentReference" validate:"required"`
}

// UpdateStatusRequest is the JSON request body for updating order status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// --- Handlers ---

// CreateOrder handles POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.OrderItem{ProductRef: item.ref(), Quantity: item.Quantity}
	}

	order, err := h.service.Create(r.Context(), service.CreateOrderInput{
		BuyerID:          actorFrom(r).UserID,
		Items:            items,
		TotalAmount:      req.TotalAmount,
		Currency:         req.Currency,
		ShippingDetails:  req.ShippingDetails,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListOrders handles GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListAll(r.Context(), actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// ListMyOrders handles GET /api/orders/mine and GET /api/user/orders
func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListForBuyer(r.Context(), actorFrom(r).UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// GetOrder handles GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetByID(r.Context(), id.String(), actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateOrderStatus handles PATCH /api/orders/{id}
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id.String(), req.Status, actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}
