package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/service"
	"github.com/VictorEZCodes/clothing-shop/pkg/httputil"
	"github.com/VictorEZCodes/clothing-shop/pkg/validator"
)

// CheckoutHandler handles the two-step checkout flow.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// BeginCheckoutRequest is the JSON request body for starting a checkout.
type BeginCheckoutRequest struct {
	ShippingDetails domain.ShippingDetails `json:"shippingDetails"`
}

// PaymentCallbackRequest carries the gateway's outcome for a checkout.
type PaymentCallbackRequest struct {
	Status    string `json:"status" validate:"required,oneof=success cancelled"`
	Reference string `json:"reference"`
}

// GetQuote handles GET /api/checkout/quote
func (h *CheckoutHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.Quote(r.Context(), actorFrom(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: quote})
}

// BeginCheckout handles POST /api/checkout
func (h *CheckoutHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	var req BeginCheckoutRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	pc, err := h.service.Begin(r.Context(), actorFrom(r), req.ShippingDetails)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: pc})
}

// PaymentCallback handles POST /api/checkout/{id}/callback
func (h *CheckoutHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req PaymentCallbackRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.Complete(r.Context(), actorFrom(r), chi.URLParam(r, "id"), domain.PaymentEvent{
		Outcome:   domain.PaymentOutcome(req.Status),
		Reference: req.Reference,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}
