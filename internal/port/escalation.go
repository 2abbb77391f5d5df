package port

import (
	"context"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

type Escalator interface {
	// Escalate hands a stuck compensation to the operator channel
	Escalate(ctx context.Context, incident domain.CompensationIncident) error
}

// Delivery is one incident read from the escalation channel.
type Delivery interface {
	Incident() (domain.CompensationIncident, error)
	Ack(ctx context.Context) error
}

type IncidentSource interface {
	// Next blocks until an incident is available or ctx is done
	Next(ctx context.Context) (Delivery, error)
}
