package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/logging"
	"github.com/rl1809/ticket-booking/internal/metrics"
	"github.com/rl1809/ticket-booking/internal/port"
)

type ReconcilerConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	ReleaseTimeout time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		ReleaseTimeout: 2 * time.Second,
	}
}

// Reconciler retries releases the saga gave up on. Release is idempotent per
// reservation id, so an incident delivered twice gives back one unit at most.
type Reconciler struct {
	source    port.IncidentSource
	inventory port.InventoryStore
	metrics   *metrics.Metrics
	log       zerolog.Logger
	cfg       ReconcilerConfig
}

func NewReconciler(source port.IncidentSource, inventory port.InventoryStore, m *metrics.Metrics, log zerolog.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = 2 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Reconciler{
		source:    source,
		inventory: inventory,
		metrics:   m,
		log:       log.With().Str("component", "reconciler").Logger(),
		cfg:       cfg,
	}
}

// Run processes incidents until ctx is done. An incident still being retried
// when ctx ends is left unacknowledged.
func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Info().Msg("reconciler started")
	for {
		d, err := r.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info().Msg("reconciler stopping")
				return nil
			}
			return fmt.Errorf("next incident: %w", err)
		}

		if err := r.handle(ctx, d); err != nil {
			if ctx.Err() != nil {
				r.log.Info().Msg("reconciler stopping")
				return nil
			}
			r.log.Error().Err(err).Msg("incident not acknowledged")
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, d port.Delivery) error {
	incident, err := d.Incident()
	if err != nil {
		r.metrics.Reconciled("malformed")
		logging.Incident(&r.log).Err(err).Msg("malformed incident dropped")
		return d.Ack(ctx)
	}

	log := r.log.With().
		Str("incident_id", incident.ID).
		Str("correlation_id", incident.CorrelationID).
		Str("resource_id", incident.ResourceID).
		Str("reservation_id", incident.ReservationID).
		Logger()

	backoff := r.cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := r.release(ctx, incident)
		switch {
		case err == nil:
			r.metrics.Reconciled("released")
			log.Info().Int("attempt", attempt).Msg("stuck reservation released")
			return d.Ack(ctx)
		case permanentReleaseError(err):
			r.metrics.Reconciled("manual")
			logging.Incident(&log).Err(err).Int64("account_id", incident.AccountID).
				Msg("manual reconciliation required")
			return d.Ack(ctx)
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("release retry scheduled")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, r.cfg.MaxBackoff)
	}
}

func (r *Reconciler) release(ctx context.Context, incident domain.CompensationIncident) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReleaseTimeout)
	defer cancel()
	return r.inventory.Release(ctx, incident.ResourceID, incident.ReservationID)
}
