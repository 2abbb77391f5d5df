package service

import (
	"errors"
	"fmt"
)

// Caller-facing outcomes. Handlers map these and nothing else.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrSoldOut         = errors.New("tickets sold out")
	ErrBookingFailed   = errors.New("booking failed")
)

// ErrCompensationFailed marks a failed booking whose reserved unit could not
// be given back. Book never returns it bare: the returned error also matches
// ErrBookingFailed, so only internal code should test for it.
var ErrCompensationFailed = errors.New("compensation failed")

var errStuckCompensation = fmt.Errorf("%w: %w", ErrBookingFailed, ErrCompensationFailed)
