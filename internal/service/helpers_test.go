package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/event"
	"github.com/VictorEZCodes/clothing-shop/internal/provider/payment"
	mockpay "github.com/VictorEZCodes/clothing-shop/internal/provider/payment/mock"
	redisrepo "github.com/VictorEZCodes/clothing-shop/internal/repository/redis"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	pkgkafka "github.com/VictorEZCodes/clothing-shop/pkg/kafka"
)

// --- Logger ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock Repository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// --- In-memory order store ---

// memOrderRepository is a working OrderRepository for flows that span several
// calls, such as create-then-list.
type memOrderRepository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	err    error
}

func newMemOrderRepository() *memOrderRepository {
	return &memOrderRepository{orders: make(map[string]domain.Order)}
}

func (r *memOrderRepository) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.orders[o.ID] = *o
	return nil
}

func (r *memOrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return &o, nil
}

func (r *memOrderRepository) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Order{}
	for _, o := range r.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memOrderRepository) ListAll(_ context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Order{}
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out, nil
}

func (r *memOrderRepository) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return apperrors.NotFound("order", id)
	}
	o.Status = status
	r.orders[id] = o
	return nil
}

// --- Catalog stub ---

type stubCatalog struct {
	products map[string]domain.Product
	buyers   map[string]domain.Buyer
	err      error
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		products: map[string]domain.Product{
			"prod-x": {ID: "prod-x", Name: "Denim Jacket", Price: decimal.RequireFromString("10.00"), Images: []string{}},
			"prod-y": {ID: "prod-y", Name: "Linen Shirt", Price: decimal.RequireFromString("19.99"), Images: []string{}},
		},
		buyers: map[string]domain.Buyer{
			"buyer-1": {ID: "buyer-1", Email: "ada@example.com"},
			"buyer-2": {ID: "buyer-2", Email: "ben@example.com"},
			"admin-1": {ID: "admin-1", Email: "ops@example.com", IsAdmin: true},
		},
	}
}

func (c *stubCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

func (c *stubCatalog) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *stubCatalog) GetBuyer(_ context.Context, id string) (*domain.Buyer, error) {
	if c.err != nil {
		return nil, c.err
	}
	b, ok := c.buyers[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	return &b, nil
}

func (c *stubCatalog) GetBuyers(_ context.Context, ids []string) (map[string]domain.Buyer, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]domain.Buyer)
	for _, id := range ids {
		if b, ok := c.buyers[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

// --- Event capture ---

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func newTestProducer() (*event.Producer, *recordingPublisher) {
	pub := &recordingPublisher{}
	return event.NewProducer(pub, newTestLogger()), pub
}

// --- Notifier capture ---

type placedCall struct {
	order domain.Order
	email string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []placedCall
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, o *domain.Order, email string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, placedCall{order: *o, email: email})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// --- Gateway spy ---

// spyGateway wraps the mock gateway and counts calls.
type spyGateway struct {
	*mockpay.Gateway
	mu          sync.Mutex
	initialized []payment.InitializeInput
	verified    []string
	override    *domain.PaymentConfirmation
}

func newSpyGateway() *spyGateway {
	return &spyGateway{Gateway: mockpay.NewGateway()}
}

func (g *spyGateway) Initialize(ctx context.Context, in *payment.InitializeInput) (*payment.Session, error) {
	g.mu.Lock()
	g.initialized = append(g.initialized, *in)
	g.mu.Unlock()
	return g.Gateway.Initialize(ctx, in)
}

func (g *spyGateway) Verify(ctx context.Context, ref string) (*domain.PaymentConfirmation, error) {
	g.mu.Lock()
	g.verified = append(g.verified, ref)
	override := g.override
	g.mu.Unlock()
	if override != nil {
		return override, nil
	}
	return g.Gateway.Verify(ctx, ref)
}

func (g *spyGateway) initCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.initialized)
}

// --- Fixtures ---

func sampleShipping() domain.ShippingDetails {
	return domain.ShippingDetails{
		FullName:   "Ada Obi",
		Address:    "12 Marina Road",
		City:       "Lagos",
		PostalCode: "101001",
		Country:    "NG",
		Phone:      "+2348012345678",
	}
}

func sampleInput(ref string) CreateOrderInput {
	return CreateOrderInput{
		BuyerID:          "buyer-1",
		Items:            []domain.OrderItem{{ProductRef: "prod-x", Quantity: 2}},
		TotalAmount:      decimal.RequireFromString("30000.00"),
		Currency:         "NGN",
		ShippingDetails:  sampleShipping(),
		PaymentReference: ref,
	}
}

func newRedisClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func newTestCartService(t *testing.T, catalog *stubCatalog) (*CartService, *miniredis.Miniredis) {
	t.Helper()
	client, mr := newRedisClient(t)
	svc := NewCartService(redisrepo.NewCartRepository(client, 24*time.Hour), catalog, newTestLogger())
	return svc, mr
}

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
