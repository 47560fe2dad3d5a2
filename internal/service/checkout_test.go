package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/event"
	"github.com/VictorEZCodes/clothing-shop/internal/pricing"
	redisrepo "github.com/VictorEZCodes/clothing-shop/internal/repository/redis"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

type rateSource struct {
	mu    sync.Mutex
	value decimal.Decimal
	err   error
	calls int
}

func (s *rateSource) Latest(_ context.Context, base, quote string) (domain.ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.ExchangeRate{}, s.err
	}
	return domain.ExchangeRate{Base: base, Quote: quote, Value: s.value, FetchedAt: time.Now().UTC()}, nil
}

type checkoutHarness struct {
	svc       *CheckoutService
	checkouts *redisrepo.CheckoutRepository
	carts     *CartService
	orders    *OrderService
	orderDB   *memOrderRepository
	catalog   *stubCatalog
	gateway   *spyGateway
	source    *rateSource
	rates     *pricing.RateBook
	pub       *recordingPublisher
	notifier  *recordingNotifier
	mr        *miniredis.Miniredis
}

// newCheckoutHarness wires a checkout service over miniredis, an in-memory
// order store and the mock gateway. The rate book starts empty.
func newCheckoutHarness(t *testing.T) *checkoutHarness {
	t.Helper()
	client, mr := newRedisClient(t)
	catalog := newStubCatalog()
	logger := newTestLogger()

	carts := NewCartService(redisrepo.NewCartRepository(client, time.Hour), catalog, logger)
	orderDB := newMemOrderRepository()
	producer, pub := newTestProducer()
	notifier := &recordingNotifier{}
	orders := NewOrderService(orderDB, catalog, producer, notifier, "NGN", logger)
	orders.newID = func() string { return orderID1 }

	source := &rateSource{}
	rates := pricing.NewRateBook(source, "USD", "NGN", logger)
	gateway := newSpyGateway()

	checkouts := redisrepo.NewCheckoutRepository(client, 30*time.Minute)
	svc := NewCheckoutService(carts, orders, catalog, checkouts, rates, gateway, producer, 30*time.Minute, logger)
	svc.newID = func() string { return "chk-1" }
	svc.newReference = func() string { return "ref-1" }

	return &checkoutHarness{
		svc: svc, checkouts: checkouts, carts: carts, orders: orders, orderDB: orderDB, catalog: catalog,
		gateway: gateway, source: source, rates: rates, pub: pub, notifier: notifier, mr: mr,
	}
}

func (h *checkoutHarness) setRate(t *testing.T, value string) {
	t.Helper()
	h.source.value = decimal.RequireFromString(value)
	_, err := h.rates.Refresh(context.Background())
	require.NoError(t, err)
}

func (h *checkoutHarness) fillCart(t *testing.T, buyerID string) {
	t.Helper()
	_, err := h.carts.AddItem(context.Background(), buyerID, "prod-x", 2)
	require.NoError(t, err)
}

var buyer1 = domain.BuyerActor("buyer-1")

// --- Quote ---

func TestQuote_ConvertsCartTotal(t *testing.T) {
	h := newCheckoutHarness(t)
	h.fillCart(t, "buyer-1")
	h.source.value = decimal.RequireFromString("1500")

	q, err := h.svc.Quote(context.Background(), buyer1)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(decimal.RequireFromString("20")))
	assert.Equal(t, "USD", q.SourceCurrency)
	assert.Equal(t, "NGN", q.Currency)
	assert.Equal(t, int64(3000000), q.AmountMinor)
	assert.Equal(t, "30000.00", q.AmountMajor.StringFixed(2))
	assert.Equal(t, 1, h.source.calls)
}

func TestQuote_FallsBackToHeldRate(t *testing.T) {
	h := newCheckoutHarness(t)
	h.fillCart(t, "buyer-1")
	h.setRate(t, "1500")
	h.source.err = errors.New("feed down")

	q, err := h.svc.Quote(context.Background(), buyer1)
	require.NoError(t, err)
	assert.Equal(t, int64(3000000), q.AmountMinor)
	assert.Equal(t, 2, h.source.calls)
}

func TestQuote_FeedDown(t *testing.T) {
	h := newCheckoutHarness(t)
	h.source.err = errors.New("feed down")

	_, err := h.svc.Quote(context.Background(), buyer1)
	assert.ErrorIs(t, err, apperrors.ErrRateUnavailable)
}

// --- Begin ---

func TestBegin_OpensPaymentAttempt(t *testing.T) {
	h := newCheckoutHarness(t)
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(context.Background(), buyer1, sampleShipping())
	require.NoError(t, err)

	assert.Equal(t, "chk-1", pc.ID)
	assert.Equal(t, "ref-1", pc.Reference)
	assert.Equal(t, int64(3000000), pc.AmountMinor)
	assert.Equal(t, "NGN", pc.Currency)
	assert.Equal(t, "USD", pc.SourceCurrency)
	assert.Equal(t, "ada@example.com", pc.BuyerEmail)
	assert.Equal(t, "mock", pc.Gateway)
	assert.NotEmpty(t, pc.AuthorizationURL)
	assert.Equal(t, []domain.OrderItem{{ProductRef: "prod-x", Quantity: 2}}, pc.Items)
	assert.Equal(t, 30*time.Minute, pc.ExpiresAt.Sub(pc.CreatedAt))

	require.Equal(t, 1, h.gateway.initCalls())
	in := h.gateway.initialized[0]
	assert.Equal(t, int64(3000000), in.AmountMinor)
	assert.Equal(t, "ada@example.com", in.Email)
	assert.Equal(t, "chk-1", in.Metadata["checkout_id"])

	assert.True(t, h.mr.Exists("checkout:chk-1"))
	assert.Empty(t, h.orderDB.orders)
}

func TestBegin_FractionalPriceConversion(t *testing.T) {
	h := newCheckoutHarness(t)
	h.setRate(t, "1600")
	_, err := h.carts.AddItem(context.Background(), "buyer-1", "prod-y", 1)
	require.NoError(t, err)

	pc, err := h.svc.Begin(context.Background(), buyer1, sampleShipping())
	require.NoError(t, err)
	assert.Equal(t, int64(3198400), pc.AmountMinor)
}

func TestBegin_NoRateDoesNotReachGateway(t *testing.T) {
	h := newCheckoutHarness(t)
	h.fillCart(t, "buyer-1")

	_, err := h.svc.Begin(context.Background(), buyer1, sampleShipping())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRateUnavailable)
	assert.Equal(t, 503, apperrors.HTTPStatus(err))
	assert.Equal(t, 0, h.gateway.initCalls())
	assert.Equal(t, 0, h.source.calls)
}

func TestBegin_SettlementTotalTooLarge(t *testing.T) {
	h := newCheckoutHarness(t)
	h.setRate(t, "100000000000")
	h.fillCart(t, "buyer-1")

	_, err := h.svc.Begin(context.Background(), buyer1, sampleShipping())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 0, h.gateway.initCalls())
	assert.False(t, h.mr.Exists("checkout:chk-1"))
}

func TestBegin_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*checkoutHarness, *testing.T)
		shipping func(domain.ShippingDetails) domain.ShippingDetails
		actor    domain.Actor
	}{
		{
			name:  "empty cart",
			setup: func(*checkoutHarness, *testing.T) {},
			actor: buyer1,
		},
		{
			name:     "blank shipping field",
			setup:    func(h *checkoutHarness, t *testing.T) { h.fillCart(t, "buyer-1") },
			shipping: func(s domain.ShippingDetails) domain.ShippingDetails { s.PostalCode = "  "; return s },
			actor:    buyer1,
		},
		{
			name: "buyer without email",
			setup: func(h *checkoutHarness, t *testing.T) {
				h.catalog.buyers["buyer-1"] = domain.Buyer{ID: "buyer-1"}
				h.fillCart(t, "buyer-1")
			},
			actor: buyer1,
		},
		{
			name:  "unknown buyer",
			setup: func(h *checkoutHarness, t *testing.T) { h.fillCart(t, "ghost") },
			actor: domain.BuyerActor("ghost"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCheckoutHarness(t)
			h.setRate(t, "1500")
			tt.setup(h, t)

			shipping := sampleShipping()
			if tt.shipping != nil {
				shipping = tt.shipping(shipping)
			}
			_, err := h.svc.Begin(context.Background(), tt.actor, shipping)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, 0, h.gateway.initCalls())
		})
	}
}

// --- Complete ---

func TestCheckout_EndToEnd(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)
	require.Equal(t, "ref-1", pc.Reference)

	order, err := h.svc.Complete(ctx, buyer1, pc.ID, domain.PaymentEvent{Outcome: domain.PaymentSucceeded, Reference: "ref-1"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, "ref-1", order.PaymentReference)
	assert.Equal(t, "NGN", order.Currency)
	assert.Equal(t, "30000.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "20.00", pricing.ToSource(pc.AmountMinor, pc.Rate).StringFixed(2))
	assert.Equal(t, sampleShipping(), order.ShippingDetails)

	cart, err := h.carts.Get(ctx, "buyer-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	orders, err := h.orders.ListForBuyer(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	assert.False(t, h.mr.Exists("checkout:chk-1"))
	assert.Equal(t, []string{"ref-1"}, h.gateway.verified)
	assert.Equal(t, 1, h.notifier.count())
	assert.Equal(t, "ada@example.com", h.notifier.calls[0].email)
}

func TestComplete_CancelledKeepsCart(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)

	order, err := h.svc.Complete(ctx, buyer1, pc.ID, domain.PaymentEvent{Outcome: domain.PaymentCancelled})
	assert.Nil(t, order)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPaymentCancelled)
	assert.Equal(t, 422, apperrors.HTTPStatus(err))

	cart, err := h.carts.Get(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
	assert.Empty(t, h.orderDB.orders)
	assert.Empty(t, h.gateway.verified)
	assert.False(t, h.mr.Exists("checkout:chk-1"))
	assert.Contains(t, h.pub.published(), event.TopicCheckoutCancelled)
}

func TestComplete_PersistenceFailureKeepsCart(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)

	h.orderDB.err = errors.New("disk full")
	_, err = h.svc.Complete(ctx, buyer1, pc.ID, domain.PaymentEvent{Outcome: domain.PaymentSucceeded, Reference: "ref-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "ref-1")

	cart, err := h.carts.Get(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
	assert.True(t, h.mr.Exists("checkout:chk-1"))
	assert.False(t, h.mr.Exists("checkout-lock:chk-1"))
	assert.Equal(t, 0, h.notifier.count())
}

func TestComplete_VerifyFailureKeepsEverything(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)
	h.gateway.Decline("ref-1")

	_, err = h.svc.Complete(ctx, buyer1, pc.ID, domain.PaymentEvent{Outcome: domain.PaymentSucceeded})
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	assert.Empty(t, h.orderDB.orders)
	assert.True(t, h.mr.Exists("checkout:chk-1"))
}

func TestComplete_AmountMismatchStillCreatesOrder(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)
	h.gateway.override = &domain.PaymentConfirmation{Reference: "ref-1", AmountMinor: 100, Currency: "NGN"}

	order, err := h.svc.Complete(ctx, buyer1, pc.ID, domain.PaymentEvent{Outcome: domain.PaymentSucceeded})
	require.NoError(t, err)
	assert.Equal(t, "30000.00", order.TotalAmount.StringFixed(2))
}

func TestComplete_SecondCallbackNotFound(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)

	evt := domain.PaymentEvent{Outcome: domain.PaymentSucceeded, Reference: "ref-1"}
	_, err = h.svc.Complete(ctx, buyer1, pc.ID, evt)
	require.NoError(t, err)

	_, err = h.svc.Complete(ctx, buyer1, pc.ID, evt)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Len(t, h.orderDB.orders, 1)
}

func TestComplete_ConcurrentCallbackConflicts(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)

	// Another callback is mid-flight and holds the checkout.
	locked, err := h.checkouts.Lock(ctx, pc.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	evt := domain.PaymentEvent{Outcome: domain.PaymentSucceeded, Reference: "ref-1"}
	_, err = h.svc.Complete(ctx, buyer1, pc.ID, evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))
	assert.Empty(t, h.gateway.verified)
	assert.Empty(t, h.orderDB.orders)
	assert.True(t, h.mr.Exists("checkout:chk-1"))

	require.NoError(t, h.checkouts.Unlock(ctx, pc.ID))
	order, err := h.svc.Complete(ctx, buyer1, pc.ID, evt)
	require.NoError(t, err)
	assert.Equal(t, "ref-1", order.PaymentReference)
	assert.False(t, h.mr.Exists("checkout-lock:chk-1"))
}

func TestComplete_OtherBuyerForbidden(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)

	_, err = h.svc.Complete(ctx, domain.BuyerActor("buyer-2"), pc.ID, domain.PaymentEvent{Outcome: domain.PaymentSucceeded})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.True(t, h.mr.Exists("checkout:chk-1"))
}

func TestComplete_ReferenceMismatch(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)

	_, err = h.svc.Complete(ctx, buyer1, pc.ID, domain.PaymentEvent{Outcome: domain.PaymentSucceeded, Reference: "ref-other"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, h.gateway.verified)
}

func TestComplete_UnknownOutcome(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()
	h.setRate(t, "1500")
	h.fillCart(t, "buyer-1")

	pc, err := h.svc.Begin(ctx, buyer1, sampleShipping())
	require.NoError(t, err)

	_, err = h.svc.Complete(ctx, buyer1, pc.ID, domain.PaymentEvent{Outcome: "pending"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestComplete_UnknownCheckout(t *testing.T) {
	h := newCheckoutHarness(t)

	_, err := h.svc.Complete(context.Background(), buyer1, "chk-missing", domain.PaymentEvent{Outcome: domain.PaymentSucceeded})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
