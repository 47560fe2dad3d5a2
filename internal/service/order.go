package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/event"
	"github.com/VictorEZCodes/clothing-shop/internal/repository"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	"github.com/VictorEZCodes/clothing-shop/pkg/logger"
	"github.com/VictorEZCodes/clothing-shop/pkg/validator"
)

// OrderNotifier is told about every committed order. Implementations must
// not block the caller.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order *domain.Order, buyerEmail string)
}

// OrderService implements the business logic for order operations.
type OrderService struct {
	repo     repository.OrderRepository
	catalog  repository.CatalogRepository
	producer *event.Producer
	notifier OrderNotifier
	currency string
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewOrderService creates a new order service. currency is recorded on
// orders created without an explicit one.
func NewOrderService(
	repo repository.OrderRepository,
	catalog repository.CatalogRepository,
	producer *event.Producer,
	notifier OrderNotifier,
	currency string,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		repo:     repo,
		catalog:  catalog,
		producer: producer,
		notifier: notifier,
		currency: currency,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	BuyerID          string
	BuyerEmail       string // optional; resolved from the catalog when empty
	Items            []domain.OrderItem
	TotalAmount      decimal.Decimal
	Currency         string
	ShippingDetails  domain.ShippingDetails
	PaymentReference string
}

func (in *CreateOrderInput) validate() error {
	if in.BuyerID == "" {
		return apperrors.InvalidInput("buyer is required")
	}
	if len(in.Items) == 0 {
		return apperrors.InvalidInput("order must contain at least one item")
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.ProductRef) == "" {
			return apperrors.InvalidInput(fmt.Sprintf("items[%d]: product is required", i))
		}
		if item.Quantity <= 0 {
			return apperrors.InvalidInput(fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
		if item.Quantity > domain.MaxLineQuantity {
			return apperrors.InvalidInput(fmt.Sprintf("items[%d]: quantity must be at most %d", i, domain.MaxLineQuantity))
		}
	}
	if !validator.ValidMoney(in.TotalAmount) {
		return apperrors.InvalidInput("total amount must be non-negative, under 1e12 and have at most 2 decimal places")
	}
	if strings.TrimSpace(in.PaymentReference) == "" {
		return apperrors.InvalidInput("payment reference is required")
	}
	in.ShippingDetails = in.ShippingDetails.Normalize()
	return validator.Validate(in.ShippingDetails)
}

// Create persists a new Pending order. A payment reference is never checked
// for reuse; calling Create twice with one reference yields two orders.
//
// Event publishing and buyer notification happen after commit and cannot
// fail the call.
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}

	now := s.now().UTC()
	items := make([]domain.OrderItem, len(input.Items))
	copy(items, input.Items)

	order := &domain.Order{
		ID:               s.newID(),
		BuyerID:          input.BuyerID,
		Items:            items,
		TotalAmount:      input.TotalAmount,
		Currency:         currency,
		ShippingDetails:  input.ShippingDetails,
		PaymentReference: input.PaymentReference,
		Status:           domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		orderPersistFailures.Inc()
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "order not saved after payment",
			slog.String("payment_reference", input.PaymentReference),
			slog.String("buyer_id", input.BuyerID),
			slog.String("total_amount", input.TotalAmount.StringFixed(2)),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Persistence(input.PaymentReference, err)
	}
	ordersCreated.Inc()

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		s.notifier.OrderPlaced(ctx, order, input.BuyerEmail)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("buyer_id", order.BuyerID),
		slog.String("payment_reference", order.PaymentReference),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// UpdateStatus sets an order's status. Only operators may call it; any known
// status may follow any other.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string, actor domain.Actor) (*domain.Order, error) {
	if !actor.IsOperator {
		return nil, apperrors.Forbidden("only operators can change order status")
	}

	target, ok := domain.ParseStatus(status)
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q: must be one of %s", status, statusList()))
	}
	if !isOrderID(orderID) {
		return nil, apperrors.NotFound("order", orderID)
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !order.CanTransitionTo(target) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
	}

	if err := s.repo.UpdateStatus(ctx, orderID, target); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	orderStatusUpdates.WithLabelValues(string(target)).Inc()

	previous := order.Status
	order.Status = target
	order.UpdatedAt = s.now().UTC()

	if err := s.producer.PublishOrderStatusChanged(ctx, orderID, previous, target, actor.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", orderID),
		slog.String("old_status", string(previous)),
		slog.String("new_status", string(target)),
		slog.String("operator_id", actor.UserID),
	)
	return order, nil
}

// GetByID returns an order with its buyer and products resolved. The order's
// buyer and operators may read it; anyone else gets Forbidden.
func (s *OrderService) GetByID(ctx context.Context, orderID string, actor domain.Actor) (*domain.OrderDetails, error) {
	if !isOrderID(orderID) {
		return nil, apperrors.NotFound("order", orderID)
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !order.IsVisibleTo(actor) {
		return nil, apperrors.Forbidden("you do not have access to this order")
	}

	details, err := s.populate(ctx, []domain.Order{*order})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// ListForBuyer returns the buyer's orders, most recent first.
func (s *OrderService) ListForBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	if buyerID == "" {
		return nil, apperrors.InvalidInput("buyer is required")
	}
	orders, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list orders for buyer: %w", err)
	}
	sortNewestFirst(orders)
	return orders, nil
}

// ListAll returns every order with buyer and products resolved. Operators only.
func (s *OrderService) ListAll(ctx context.Context, actor domain.Actor) ([]domain.OrderDetails, error) {
	if !actor.IsOperator {
		return nil, apperrors.Forbidden("only operators can list all orders")
	}
	orders, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	sortNewestFirst(orders)
	return s.populate(ctx, orders)
}

// populate joins orders with their buyers and products in two batch reads.
// Deleted products and buyers resolve to nil rather than an error.
func (s *OrderService) populate(ctx context.Context, orders []domain.Order) ([]domain.OrderDetails, error) {
	buyerIDs := make([]string, 0, len(orders))
	productIDs := make([]string, 0)
	seenBuyer := make(map[string]bool)
	seenProduct := make(map[string]bool)
	for _, o := range orders {
		if !seenBuyer[o.BuyerID] {
			seenBuyer[o.BuyerID] = true
			buyerIDs = append(buyerIDs, o.BuyerID)
		}
		for _, item := range o.Items {
			if !seenProduct[item.ProductRef] {
				seenProduct[item.ProductRef] = true
				productIDs = append(productIDs, item.ProductRef)
			}
		}
	}

	buyers, err := s.catalog.GetBuyers(ctx, buyerIDs)
	if err != nil {
		return nil, fmt.Errorf("load order buyers: %w", err)
	}
	products, err := s.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load order products: %w", err)
	}

	out := make([]domain.OrderDetails, len(orders))
	for i, o := range orders {
		var buyer *domain.Buyer
		if b, ok := buyers[o.BuyerID]; ok {
			buyer = &b
		}
		out[i] = domain.NewOrderDetails(o, buyer, products)
	}
	return out, nil
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

func isOrderID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func statusList() string {
	names := make([]string, 0, 4)
	for _, st := range domain.ValidStatuses() {
		names = append(names, string(st))
	}
	return strings.Join(names, ", ")
}
