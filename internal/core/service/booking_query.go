package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

// BookingQuery serves a requester's ledger history. It never touches inventory.
type BookingQuery struct {
	accounts port.IdentityLookup
	ledger   port.BookingLedger
}

func NewBookingQuery(accounts port.IdentityLookup, ledger port.BookingLedger) *BookingQuery {
	return &BookingQuery{accounts: accounts, ledger: ledger}
}

func (q *BookingQuery) ListBookings(ctx context.Context, identity string) ([]domain.Booking, error) {
	account, err := q.accounts.FindActiveAccount(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if account == nil || !account.Active {
		zerolog.Ctx(ctx).Warn().Str("identity", identity).Msg("account not found")
		return nil, ErrAccountNotFound
	}

	bookings, err := q.ledger.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Int64("account_id", account.ID).Int("count", len(bookings)).Msg("bookings listed")
	return bookings, nil
}
