// Package smtp sends plain-text mail through an SMTP relay.
package smtp

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
)

// Config configures the relay connection.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender delivers messages with PLAIN auth over STARTTLS when offered.
type Sender struct {
	cfg  Config
	auth smtp.Auth
	send sendFunc
	now  func() time.Time
}

// New creates an SMTP sender. Auth is skipped when no username is set.
func New(cfg Config) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &Sender{cfg: cfg, send: smtp.SendMail, now: time.Now}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s
}

// Name returns the name of this sender.
func (s *Sender) Name() string {
	return "smtp"
}

// Send delivers msg. smtp.SendMail has no context support, so the call runs
// in a goroutine and ctx only bounds how long Send waits for it.
func (s *Sender) Send(ctx context.Context, msg *domain.Message) error {
	from := msg.From
	if from == "" {
		from = s.cfg.From
	}
	if msg.To == "" {
		return fmt.Errorf("smtp: message for order %s has no recipient", msg.OrderID)
	}

	raw := s.compose(from, msg)
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, s.auth, envelopeAddress(from), []string{envelopeAddress(msg.To)}, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

func (s *Sender) compose(from string, msg *domain.Message) []byte {
	var b strings.Builder
	host := s.cfg.Host
	if host == "" {
		host = "localhost"
	}
	headers := [][2]string{
		{"From", from},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", s.now().UTC().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), host)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/plain; charset="utf-8"`},
		{"Content-Transfer-Encoding", "8bit"},
	}
	for _, h := range headers {
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// envelopeAddress strips a display name: "Shop <a@b.c>" becomes "a@b.c".
func envelopeAddress(addr string) string {
	if i := strings.LastIndexByte(addr, '<'); i >= 0 {
		if j := strings.IndexByte(addr[i:], '>'); j > 0 {
			return addr[i+1 : i+j]
		}
	}
	return strings.TrimSpace(addr)
}
