package port

import (
	"context"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

type IdentityLookup interface {
	// FindActiveAccount returns nil when no active account matches identity
	FindActiveAccount(ctx context.Context, identity string) (*domain.Account, error)
}
