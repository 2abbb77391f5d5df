package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

var ErrForeignTx = errors.New("transaction was not opened by this ledger")

// MySQLAdapter is the booking ledger. It never commits on behalf of the
// caller: InsertBooking writes into a transaction from BeginTx and the caller
// decides whether the row becomes durable.
type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (m *MySQLAdapter) BeginTx(ctx context.Context) (port.LedgerTx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (m *MySQLAdapter) InsertBooking(ctx context.Context, tx port.LedgerTx, draft domain.BookingDraft) (domain.Booking, error) {
	sqlTx, ok := tx.(*sql.Tx)
	if !ok {
		return domain.Booking{}, ErrForeignTx
	}

	booking := domain.Booking{
		ID:                  uuid.NewString(),
		AccountID:           draft.AccountID,
		ResourceID:          draft.ResourceID,
		ResourceDisplayName: draft.ResourceDisplayName,
		CreatedAt:           m.now().Truncate(time.Microsecond),
	}

	_, err := sqlTx.ExecContext(ctx, `
		INSERT INTO bookings (booking_id, account_id, resource_id, resource_display_name, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.AccountID, booking.ResourceID, booking.ResourceDisplayName,
		draft.CreatedBy, booking.CreatedAt,
	)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	return booking, nil
}

func (m *MySQLAdapter) ListByAccount(ctx context.Context, accountID int64) ([]domain.Booking, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT booking_id, account_id, resource_id, resource_display_name, created_at
		FROM bookings WHERE account_id = ?
		ORDER BY created_at DESC, booking_id DESC`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.AccountID, &b.ResourceID, &b.ResourceDisplayName, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}
