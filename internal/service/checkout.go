package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/event"
	"github.com/VictorEZCodes/clothing-shop/internal/pricing"
	"github.com/VictorEZCodes/clothing-shop/internal/provider/payment"
	"github.com/VictorEZCodes/clothing-shop/internal/repository"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	"github.com/VictorEZCodes/clothing-shop/pkg/logger"
	"github.com/VictorEZCodes/clothing-shop/pkg/validator"
)

// completionLockTTL bounds how long one callback may hold a checkout while
// it verifies the payment and saves the order.
const completionLockTTL = 2 * time.Minute

// RateProvider supplies the source-to-settlement exchange rate.
// *pricing.RateBook implements it.
type RateProvider interface {
	Base() string
	Quote() string
	Current() (domain.ExchangeRate, error)
	CurrentOrRefresh(ctx context.Context) (domain.ExchangeRate, error)
}

// CheckoutService turns a buyer's cart into a paid order in two steps: Begin
// opens a payment attempt, and Complete handles the gateway's outcome.
type CheckoutService struct {
	carts     *CartService
	orders    *OrderService
	catalog   repository.CatalogRepository
	checkouts repository.CheckoutRepository
	rates     RateProvider
	gateway   payment.Gateway
	producer  *event.Producer
	ttl       time.Duration
	logger    *slog.Logger

	now          func() time.Time
	newID        func() string
	newReference func() string
}

// NewCheckoutService creates a new checkout service. Pending checkouts
// expire after ttl.
func NewCheckoutService(
	carts *CartService,
	orders *OrderService,
	catalog repository.CatalogRepository,
	checkouts repository.CheckoutRepository,
	rates RateProvider,
	gateway payment.Gateway,
	producer *event.Producer,
	ttl time.Duration,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:        carts,
		orders:       orders,
		catalog:      catalog,
		checkouts:    checkouts,
		rates:        rates,
		gateway:      gateway,
		producer:     producer,
		ttl:          ttl,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
		newReference: newPaymentReference,
	}
}

func newPaymentReference() string {
	return "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Quote converts the buyer's cart total for display, refreshing the rate
// once. When the feed is down the last known rate is used.
func (s *CheckoutService) Quote(ctx context.Context, actor domain.Actor) (*domain.Quote, error) {
	cart, err := s.carts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	rate, err := s.rates.CurrentOrRefresh(ctx)
	if err != nil {
		return nil, err
	}

	total := cart.Total()
	minor, err := pricing.Convert(total, rate.Value)
	if err != nil {
		return nil, err
	}

	return &domain.Quote{
		Total:          total,
		SourceCurrency: s.rates.Base(),
		Rate:           rate.Value,
		AmountMinor:    minor,
		AmountMajor:    pricing.ToMajor(minor),
		Currency:       s.rates.Quote(),
		RateFetchedAt:  rate.FetchedAt,
	}, nil
}

// Begin validates the checkout, opens a payment attempt for the converted
// cart total and stores a pending checkout. Nothing reaches the gateway
// unless the shipping details, cart, buyer email and exchange rate are all
// present.
func (s *CheckoutService) Begin(ctx context.Context, actor domain.Actor, shipping domain.ShippingDetails) (*domain.PendingCheckout, error) {
	log := logger.WithContext(ctx, s.logger)

	shipping = shipping.Normalize()
	if err := validator.Validate(shipping); err != nil {
		return nil, err
	}

	cart, err := s.carts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	email, err := s.buyerEmail(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	rate, err := s.rates.Current()
	if err != nil {
		checkoutOutcomes.WithLabelValues("begin", "rate_unavailable").Inc()
		return nil, err
	}

	total := cart.Total()
	minor, err := pricing.Convert(total, rate.Value)
	if err != nil {
		return nil, err
	}
	if !validator.ValidMoney(pricing.ToMajor(minor)) {
		checkoutOutcomes.WithLabelValues("begin", "amount_too_large").Inc()
		return nil, apperrors.InvalidInput("cart total is too large to place as one order")
	}

	now := s.now().UTC()
	checkoutID := s.newID()
	session, err := s.gateway.Initialize(ctx, &payment.InitializeInput{
		AmountMinor: minor,
		Currency:    s.rates.Quote(),
		Email:       email,
		Reference:   s.newReference(),
		Metadata: map[string]string{
			"checkout_id": checkoutID,
			"buyer_id":    actor.UserID,
		},
	})
	if err != nil {
		checkoutOutcomes.WithLabelValues("begin", "gateway_error").Inc()
		return nil, fmt.Errorf("initialize payment: %w", err)
	}

	pc := &domain.PendingCheckout{
		ID:               checkoutID,
		BuyerID:          actor.UserID,
		BuyerEmail:       email,
		Items:            cart.OrderItems(),
		ShippingDetails:  shipping,
		Total:            total,
		SourceCurrency:   s.rates.Base(),
		Rate:             rate.Value,
		AmountMinor:      minor,
		Currency:         s.rates.Quote(),
		Reference:        session.Reference,
		AuthorizationURL: session.AuthorizationURL,
		Gateway:          s.gateway.Name(),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}
	if err := s.checkouts.Save(ctx, pc); err != nil {
		return nil, fmt.Errorf("save pending checkout: %w", err)
	}
	checkoutOutcomes.WithLabelValues("begin", "started").Inc()

	log.InfoContext(ctx, "checkout started",
		slog.String("checkout_id", pc.ID),
		slog.String("payment_reference", pc.Reference),
		slog.Int64("amount_minor", pc.AmountMinor),
		slog.String("currency", pc.Currency),
		slog.String("rate", pc.Rate.String()),
	)
	return pc, nil
}

func (s *CheckoutService) buyerEmail(ctx context.Context, buyerID string) (string, error) {
	buyer, err := s.catalog.GetBuyer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.InvalidInput("an email address is required to check out")
		}
		return "", fmt.Errorf("get buyer: %w", err)
	}
	if strings.TrimSpace(buyer.Email) == "" {
		return "", apperrors.InvalidInput("an email address is required to check out")
	}
	return buyer.Email, nil
}

// Complete applies the gateway's outcome to a pending checkout.
//
// Concurrent callbacks for one checkout are serialised: the loser gets a
// conflict error. A cancelled payment discards the pending checkout and
// leaves the cart alone. A successful one is verified with the gateway and becomes an order
// whose total is the settlement amount in major units; the cart is then
// cleared. If the order cannot be saved, the cart and pending checkout stay
// so the payment can be reconciled.
func (s *CheckoutService) Complete(ctx context.Context, actor domain.Actor, checkoutID string, evt domain.PaymentEvent) (*domain.Order, error) {
	pc, err := s.checkouts.Get(ctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("get pending checkout: %w", err)
	}
	if pc.BuyerID != actor.UserID && !actor.IsOperator {
		return nil, apperrors.Forbidden("checkout belongs to another buyer")
	}
	if evt.Reference != "" && evt.Reference != pc.Reference {
		return nil, apperrors.InvalidInput("payment reference does not match this checkout")
	}

	ctx = logger.WithPaymentReference(ctx, pc.Reference)
	log := logger.WithContext(ctx, s.logger)

	locked, err := s.checkouts.Lock(ctx, pc.ID, completionLockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock pending checkout: %w", err)
	}
	if !locked {
		checkoutOutcomes.WithLabelValues("complete", "conflict").Inc()
		return nil, apperrors.Conflict("this checkout is already being completed")
	}
	defer func() {
		if err := s.checkouts.Unlock(context.WithoutCancel(ctx), pc.ID); err != nil {
			log.WarnContext(ctx, "failed to release checkout lock",
				slog.String("checkout_id", pc.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	switch evt.Outcome {
	case domain.PaymentCancelled:
		if err := s.checkouts.Delete(ctx, pc.ID); err != nil {
			log.WarnContext(ctx, "failed to delete cancelled checkout",
				slog.String("checkout_id", pc.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.producer.PublishCheckoutCancelled(ctx, pc); err != nil {
			log.ErrorContext(ctx, "failed to publish checkout.cancelled event",
				slog.String("checkout_id", pc.ID),
				slog.String("error", err.Error()),
			)
		}
		checkoutOutcomes.WithLabelValues("complete", "cancelled").Inc()
		log.InfoContext(ctx, "checkout cancelled by buyer", slog.String("checkout_id", pc.ID))
		return nil, apperrors.PaymentCancelled(pc.Reference)

	case domain.PaymentSucceeded:
		return s.fulfil(ctx, log, pc)

	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown payment status %q: must be %q or %q",
			evt.Outcome, domain.PaymentSucceeded, domain.PaymentCancelled))
	}
}

func (s *CheckoutService) fulfil(ctx context.Context, log *slog.Logger, pc *domain.PendingCheckout) (*domain.Order, error) {
	conf, err := s.gateway.Verify(ctx, pc.Reference)
	if err != nil {
		checkoutOutcomes.WithLabelValues("complete", "verify_failed").Inc()
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if conf.AmountMinor != pc.AmountMinor || !strings.EqualFold(conf.Currency, pc.Currency) {
		log.WarnContext(ctx, "gateway amount differs from checkout amount",
			slog.String("checkout_id", pc.ID),
			slog.Int64("expected_minor", pc.AmountMinor),
			slog.String("expected_currency", pc.Currency),
			slog.Int64("paid_minor", conf.AmountMinor),
			slog.String("paid_currency", conf.Currency),
		)
	}

	reference := conf.Reference
	if reference == "" {
		reference = pc.Reference
	}

	order, err := s.orders.Create(ctx, CreateOrderInput{
		BuyerID:          pc.BuyerID,
		BuyerEmail:       pc.BuyerEmail,
		Items:            pc.Items,
		TotalAmount:      pricing.ToMajor(pc.AmountMinor),
		Currency:         pc.Currency,
		ShippingDetails:  pc.ShippingDetails,
		PaymentReference: reference,
	})
	if err != nil {
		checkoutOutcomes.WithLabelValues("complete", "failed").Inc()
		return nil, err
	}

	if err := s.carts.Clear(ctx, pc.BuyerID); err != nil {
		log.ErrorContext(ctx, "order created but cart not cleared",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.checkouts.Delete(ctx, pc.ID); err != nil {
		log.WarnContext(ctx, "failed to delete completed checkout",
			slog.String("checkout_id", pc.ID),
			slog.String("error", err.Error()),
		)
	}

	checkoutOutcomes.WithLabelValues("complete", "completed").Inc()
	return order, nil
}
