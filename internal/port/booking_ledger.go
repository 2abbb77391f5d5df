package port

import (
	"context"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

// LedgerTx is a transaction scope owned by the caller of BookingLedger.
type LedgerTx interface {
	Commit() error
	Rollback() error
}

type BookingLedger interface {
	// BeginTx opens a transaction for InsertBooking
	BeginTx(ctx context.Context) (LedgerTx, error)

	// InsertBooking writes a booking inside tx and never commits it
	InsertBooking(ctx context.Context, tx LedgerTx, draft domain.BookingDraft) (domain.Booking, error)

	// ListByAccount returns bookings newest first
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Booking, error)
}
