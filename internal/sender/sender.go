package sender

import (
	"context"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
)

// Sender delivers a message through one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *domain.Message) error
}
