package port

import (
	"context"
	"errors"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

var (
	ErrUnavailable      = errors.New("resource unavailable")
	ErrResourceNotFound = errors.New("resource not found")
	ErrOverRelease      = errors.New("release would exceed total units")
)

type InventoryStore interface {
	// Reserve atomically takes one unit, returns ErrUnavailable if the resource is missing, inactive or sold out
	Reserve(ctx context.Context, resourceID, reservationID string) (domain.Reservation, error)

	// Release gives back the unit held by reservationID; a no-op if the hold is already gone
	Release(ctx context.Context, resourceID, reservationID string) error

	// Confirm drops the hold for a reservation that became a booking
	Confirm(ctx context.Context, resourceID, reservationID string) error
}

type InventoryAdmin interface {
	// Provision creates the resource if absent, returns false if it already existed
	Provision(ctx context.Context, resource domain.Resource) (bool, error)

	// SetActive toggles bookability
	SetActive(ctx context.Context, resourceID string, active bool) error

	// Get returns nil when the resource does not exist
	Get(ctx context.Context, resourceID string) (*domain.Resource, error)
}
