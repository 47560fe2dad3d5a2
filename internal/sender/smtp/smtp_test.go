package smtp

import (
	"context"
	"errors"
	stdsmtp "net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/sender"
)

var _ sender.Sender = (*Sender)(nil)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
	auth bool
}

func newCapturingSender(cfg Config, err error) (*Sender, *captured) {
	s := New(cfg)
	c := &captured{}
	s.send = func(addr string, a stdsmtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg, c.auth = addr, from, to, string(msg), a != nil
		return err
	}
	s.now = func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) }
	return s, c
}

func TestSend_ComposesMessage(t *testing.T) {
	s, c := newCapturingSender(Config{
		Host: "smtp.example.com", Port: 587, Username: "shop", Password: "pw",
		From: "Clothing Shop <orders@shop.example.com>",
	}, nil)

	err := s.Send(context.Background(), &domain.Message{
		OrderID: "o-1",
		To:      "buyer@example.com",
		Subject: "Order Confirmation",
		Body:    "line one\nline two",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", c.addr)
	assert.Equal(t, "orders@shop.example.com", c.from)
	assert.Equal(t, []string{"buyer@example.com"}, c.to)
	assert.True(t, c.auth)
	assert.Contains(t, c.msg, "From: Clothing Shop <orders@shop.example.com>\r\n")
	assert.Contains(t, c.msg, "To: buyer@example.com\r\n")
	assert.Contains(t, c.msg, "Subject: Order Confirmation\r\n")
	assert.Contains(t, c.msg, "Date: Mon, 19 Oct 2026 09:30:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(c.msg, "\r\n\r\nline one\r\nline two\r\n"))
	assert.Equal(t, "smtp", s.Name())
}

func TestSend_NoAuthWithoutUsername(t *testing.T) {
	s, c := newCapturingSender(Config{Host: "localhost", Port: 25, From: "a@b.c"}, nil)
	require.NoError(t, s.Send(context.Background(), &domain.Message{To: "x@y.z"}))
	assert.False(t, c.auth)
}

func TestSend_WrapsRelayError(t *testing.T) {
	relayErr := errors.New("550 mailbox unavailable")
	s, _ := newCapturingSender(Config{Host: "localhost", Port: 25, From: "a@b.c"}, relayErr)

	err := s.Send(context.Background(), &domain.Message{To: "x@y.z"})
	assert.ErrorIs(t, err, relayErr)
	assert.Contains(t, err.Error(), "smtp send to x@y.z")
}

func TestSend_RequiresRecipient(t *testing.T) {
	s, _ := newCapturingSender(Config{Host: "localhost", Port: 25}, nil)
	assert.Error(t, s.Send(context.Background(), &domain.Message{OrderID: "o-1"}))
}

func TestSend_ContextBoundsWait(t *testing.T) {
	s := New(Config{Host: "localhost", Port: 25, From: "a@b.c", Timeout: 20 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)
	s.send = func(string, stdsmtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	err := s.Send(context.Background(), &domain.Message{To: "x@y.z"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "a@b.c", envelopeAddress("Shop <a@b.c>"))
	assert.Equal(t, "a@b.c", envelopeAddress(" a@b.c "))
}
