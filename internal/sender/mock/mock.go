package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
)

// MockSender logs messages instead of delivering them. Sent messages are kept
// for inspection, and Fail makes subsequent sends to an address return an error.
type MockSender struct {
	logger *slog.Logger

	mu       sync.Mutex
	sent     []domain.Message
	failures map[string]error
	notify   chan domain.Message
}

// NewMockSender creates a new mock sender.
func NewMockSender(logger *slog.Logger) *MockSender {
	return &MockSender{
		logger:   logger,
		failures: make(map[string]error),
	}
}

// Name returns the name of this sender.
func (s *MockSender) Name() string {
	return "mock-email"
}

// Fail makes every later send to address return err.
func (s *MockSender) Fail(address string, err error) {
	s.mu.Lock()
	s.failures[address] = err
	s.mu.Unlock()
}

// Notify returns a channel receiving every attempted message, successful or
// not. It must be called before sends begin.
func (s *MockSender) Notify(buffer int) <-chan domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = make(chan domain.Message, buffer)
	return s.notify
}

// Sent returns a copy of the successfully sent messages.
func (s *MockSender) Sent() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// Send records msg, or returns the configured failure for its recipient.
func (s *MockSender) Send(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	err := s.failures[msg.To]
	if err == nil {
		s.sent = append(s.sent, *msg)
	}
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		select {
		case notify <- *msg:
		default:
		}
	}
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "mock sender: message sent",
		slog.String("order_id", msg.OrderID),
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
