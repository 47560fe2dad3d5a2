package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	pkgkafka "github.com/VictorEZCodes/clothing-shop/pkg/kafka"
)

// Kafka topic constants for order domain events.
const (
	TopicOrderCreated       = "clothing-shop.order.created"
	TopicOrderStatusChanged = "clothing-shop.order.status_changed"
	TopicCheckoutCancelled  = "clothing-shop.checkout.cancelled"
)

// Event types carried in the envelope.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeCheckoutCancelled  = "checkout.cancelled"
)

// Aggregate type constants.
const (
	AggregateTypeOrder    = "order"
	AggregateTypeCheckout = "checkout"
)

// SourceOrderService identifies events originating from this service.
const SourceOrderService = "clothing-shop"

// Publisher sends an event envelope to a topic. *pkgkafka.Producer
// implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// OrderCreatedData is the payload for an order.created event (full order snapshot).
type OrderCreatedData struct {
	ID               string                 `json:"id"`
	BuyerID          string                 `json:"buyer_id"`
	Status           string                 `json:"status"`
	Items            []OrderItemData        `json:"items"`
	TotalAmount      decimal.Decimal        `json:"total_amount"`
	Currency         string                 `json:"currency"`
	PaymentReference string                 `json:"payment_reference"`
	ShippingDetails  domain.ShippingDetails `json:"shipping_details"`
	CreatedAt        time.Time              `json:"created_at"`
}

// OrderItemData is the event payload for an order item.
type OrderItemData struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ChangedBy string `json:"changed_by"`
}

// CheckoutCancelledData is the payload for a checkout.cancelled event.
type CheckoutCancelledData struct {
	CheckoutID  string `json:"checkout_id"`
	BuyerID     string `json:"buyer_id"`
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// Producer publishes order domain events.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		pub:    pub,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event with the full order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{ProductRef: item.ProductRef, Quantity: item.Quantity}
	}

	data := OrderCreatedData{
		ID:               order.ID,
		BuyerID:          order.BuyerID,
		Status:           string(order.Status),
		Items:            items,
		TotalAmount:      order.TotalAmount,
		Currency:         order.Currency,
		PaymentReference: order.PaymentReference,
		ShippingDetails:  order.ShippingDetails,
		CreatedAt:        order.CreatedAt,
	}

	if err := p.publish(ctx, TopicOrderCreated, TypeOrderCreated, order.ID, AggregateTypeOrder, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", order.ID),
		slog.String("buyer_id", order.BuyerID),
	)
	return nil
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, orderID string, oldStatus, newStatus domain.OrderStatus, changedBy string) error {
	data := OrderStatusChangedData{
		OrderID:   orderID,
		OldStatus: string(oldStatus),
		NewStatus: string(newStatus),
		ChangedBy: changedBy,
	}

	if err := p.publish(ctx, TopicOrderStatusChanged, TypeOrderStatusChanged, orderID, AggregateTypeOrder, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.status_changed event",
		slog.String("order_id", orderID),
		slog.String("old_status", string(oldStatus)),
		slog.String("new_status", string(newStatus)),
	)
	return nil
}

// PublishCheckoutCancelled publishes a checkout.cancelled event so abandoned
// payments can be reconciled against the gateway.
func (p *Producer) PublishCheckoutCancelled(ctx context.Context, pc *domain.PendingCheckout) error {
	data := CheckoutCancelledData{
		CheckoutID:  pc.ID,
		BuyerID:     pc.BuyerID,
		Reference:   pc.Reference,
		AmountMinor: pc.AmountMinor,
		Currency:    pc.Currency,
	}
	return p.publish(ctx, TopicCheckoutCancelled, TypeCheckoutCancelled, pc.ID, AggregateTypeCheckout, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(ctx, eventType, aggregateID, aggregateType, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if err := p.pub.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// DiscardPublisher drops every event. It stands in for Kafka when
// KAFKA_ENABLED is false.
type DiscardPublisher struct {
	logger *slog.Logger
}

// NewDiscardPublisher creates a publisher that only logs.
func NewDiscardPublisher(logger *slog.Logger) *DiscardPublisher {
	return &DiscardPublisher{logger: logger}
}

func (d *DiscardPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	d.logger.DebugContext(ctx, "kafka disabled, event discarded",
		slog.String("topic", topic),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
	)
	return nil
}
