package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/repository"
	"github.com/VictorEZCodes/clothing-shop/internal/sender"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

// Subjects of the two order notifications.
const (
	SubjectOrderConfirmation = "Order Confirmation"
	SubjectNewOrder          = "New Order Received"
)

// DispatcherConfig holds the addresses and limits of the notification dispatcher.
type DispatcherConfig struct {
	From          string
	OperatorEmail string
	SendTimeout   time.Duration
}

// Dispatcher sends the buyer confirmation and operator alert for each new
// order. Sends run on a background goroutine, are attempted once, and their
// failures are logged and dropped.
type Dispatcher struct {
	cfg     DispatcherConfig
	sender  sender.Sender
	sentLog repository.SentLog
	catalog repository.CatalogRepository
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(
	cfg DispatcherConfig,
	snd sender.Sender,
	sentLog repository.SentLog,
	catalog repository.CatalogRepository,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		cfg:     cfg,
		sender:  snd,
		sentLog: sentLog,
		catalog: catalog,
		logger:  logger,
	}
}

// OrderPlaced schedules both notifications for order and returns at once.
// The sends outlive ctx's cancellation but keep its values. When buyerEmail
// is empty the address is looked up from the catalog.
func (d *Dispatcher) OrderPlaced(ctx context.Context, order *domain.Order, buyerEmail string) {
	ctx = context.WithoutCancel(ctx)
	snapshot := *order

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.ErrorContext(ctx, "panic in notification dispatch",
					slog.String("order_id", snapshot.ID),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		d.deliver(ctx, &snapshot, buyerEmail)
	}()
}

// Wait blocks until every scheduled send has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for notifications: %w", ctx.Err())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, order *domain.Order, buyerEmail string) {
	if buyerEmail == "" {
		buyer, err := d.catalog.GetBuyer(ctx, order.BuyerID)
		if err != nil {
			d.fail(ctx, order.ID, domain.RecipientBuyer, apperrors.Notification("buyer "+order.BuyerID, err))
		} else {
			buyerEmail = buyer.Email
		}
	}

	if buyerEmail != "" {
		d.send(ctx, BuyerConfirmation(order, d.cfg.From, buyerEmail))
	}
	d.send(ctx, OperatorAlert(order, d.cfg.From, d.cfg.OperatorEmail))
}

func (d *Dispatcher) send(ctx context.Context, msg *domain.Message) {
	if msg.To == "" {
		d.fail(ctx, msg.OrderID, msg.Kind, apperrors.Notification(string(msg.Kind), fmt.Errorf("no recipient address")))
		return
	}

	// The claim is taken before sending: a crash between claim and send loses
	// the message rather than duplicating it.
	claimed, err := d.sentLog.Claim(ctx, SentLogKey(msg.OrderID, msg.Kind))
	if err != nil {
		d.fail(ctx, msg.OrderID, msg.Kind, apperrors.Notification(msg.To, err))
		return
	}
	if !claimed {
		notificationsSent.WithLabelValues(string(msg.Kind), "duplicate").Inc()
		d.logger.DebugContext(ctx, "notification already sent",
			slog.String("order_id", msg.OrderID),
			slog.String("kind", string(msg.Kind)),
		)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, msg); err != nil {
		d.fail(ctx, msg.OrderID, msg.Kind, apperrors.Notification(msg.To, err))
		return
	}

	notificationsSent.WithLabelValues(string(msg.Kind), "sent").Inc()
	d.logger.InfoContext(ctx, "notification sent",
		slog.String("order_id", msg.OrderID),
		slog.String("kind", string(msg.Kind)),
		slog.String("sender", d.sender.Name()),
	)
}

func (d *Dispatcher) fail(ctx context.Context, orderID string, kind domain.RecipientKind, err error) {
	notificationsSent.WithLabelValues(string(kind), "failed").Inc()
	d.logger.WarnContext(ctx, "notification failed",
		slog.String("order_id", orderID),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
}

// SentLogKey identifies one notification of one order.
func SentLogKey(orderID string, kind domain.RecipientKind) string {
	return orderID + ":" + string(kind)
}

// FormatAmount renders an amount for message bodies, e.g. "NGN 30000.00".
func FormatAmount(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	return currency + " " + amount.StringFixed(2)
}

// BuyerConfirmation builds the message telling the buyer their order was received.
func BuyerConfirmation(order *domain.Order, from, to string) *domain.Message {
	return &domain.Message{
		OrderID: order.ID,
		Kind:    domain.RecipientBuyer,
		From:    from,
		To:      to,
		Subject: SubjectOrderConfirmation,
		Body: fmt.Sprintf(
			"Your order #%s has been received and is being processed. Total amount: %s. Payment Reference: %s",
			order.ID, FormatAmount(order.TotalAmount, order.Currency), order.PaymentReference,
		),
	}
}

// OperatorAlert builds the new-order message for the shop operator.
func OperatorAlert(order *domain.Order, from, to string) *domain.Message {
	return &domain.Message{
		OrderID: order.ID,
		Kind:    domain.RecipientOperator,
		From:    from,
		To:      to,
		Subject: SubjectNewOrder,
		Body: fmt.Sprintf(
			"A new order #%s has been received. Total amount: %s. Payment Reference: %s",
			order.ID, FormatAmount(order.TotalAmount, order.Currency), order.PaymentReference,
		),
	}
}
