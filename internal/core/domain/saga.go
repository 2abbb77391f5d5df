package domain

import "time"

type SagaState string

const (
	SagaStateStart      SagaState = "start"
	SagaStateReserve    SagaState = "reserve"
	SagaStatePersist    SagaState = "persist"
	SagaStateCompensate SagaState = "compensate"

	SagaStateBooked             SagaState = "booked"
	SagaStateAccountNotFound    SagaState = "account_not_found"
	SagaStateSoldOut            SagaState = "sold_out"
	SagaStateBookingFailed      SagaState = "booking_failed"
	SagaStateCompensationFailed SagaState = "compensation_failed"
)

// Terminal reports whether no further transition is possible from s.
func (s SagaState) Terminal() bool {
	switch s {
	case SagaStateBooked, SagaStateAccountNotFound, SagaStateSoldOut,
		SagaStateBookingFailed, SagaStateCompensationFailed:
		return true
	}
	return false
}

type BookingRequest struct {
	CorrelationID string
	Identity      string
	ResourceID    string
}

type SagaTransition struct {
	From SagaState
	To   SagaState
	At   time.Time
}

// Saga is the state of one booking attempt. It is a plain value: a retry by
// the caller starts a new Saga with a new reservation.
type Saga struct {
	Request     BookingRequest
	State       SagaState
	AccountID   int64
	Reservation *Reservation
	Booking     *Booking

	// Cause is the low-level error that moved the saga off the happy path.
	// It is for operators only.
	Cause error
	// CompensationErr is set when the release itself failed.
	CompensationErr error

	History []SagaTransition
}

func NewSaga(req BookingRequest, now time.Time) Saga {
	return Saga{
		Request: req,
		State:   SagaStateStart,
		History: []SagaTransition{{From: "", To: SagaStateStart, At: now}},
	}
}

func (s *Saga) Transition(to SagaState, now time.Time) {
	s.History = append(s.History, SagaTransition{From: s.State, To: to, At: now})
	s.State = to
}
