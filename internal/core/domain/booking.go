package domain

import "time"

// BookingDraft is what the saga hands to the ledger. The display name is a
// snapshot taken at reservation time and is not kept in sync with the catalog.
type BookingDraft struct {
	AccountID           int64
	ResourceID          string
	ResourceDisplayName string
	CreatedBy           string
}

type Booking struct {
	ID                  string
	AccountID           int64
	ResourceID          string
	ResourceDisplayName string
	CreatedAt           time.Time
}
