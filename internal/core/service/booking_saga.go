package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/logging"
	"github.com/rl1809/ticket-booking/internal/metrics"
	"github.com/rl1809/ticket-booking/internal/port"
)

type SagaConfig struct {
	LedgerTimeout   time.Duration
	ReleaseTimeout  time.Duration
	ReleaseAttempts int
	ReleaseBackoff  time.Duration
	// EscalateTimeout bounds the hand-off of a stuck compensation.
	EscalateTimeout time.Duration
}

func DefaultSagaConfig() SagaConfig {
	return SagaConfig{
		LedgerTimeout:   3 * time.Second,
		ReleaseTimeout:  2 * time.Second,
		ReleaseAttempts: 3,
		ReleaseBackoff:  50 * time.Millisecond,
		EscalateTimeout: 5 * time.Second,
	}
}

type Dependencies struct {
	Accounts  port.IdentityLookup
	Inventory port.InventoryStore
	Ledger    port.BookingLedger
	Escalator port.Escalator
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// BookingSaga reserves a unit in the inventory store, records the booking in
// the ledger and gives the unit back if the ledger write fails. It holds no
// counters of its own; every attempt is an independent Saga value.
type BookingSaga struct {
	accounts  port.IdentityLookup
	inventory port.InventoryStore
	ledger    port.BookingLedger
	escalator port.Escalator
	metrics   *metrics.Metrics
	log       zerolog.Logger
	tracer    trace.Tracer
	cfg       SagaConfig

	now   func() time.Time
	newID func() string
}

func NewBookingSaga(deps Dependencies, cfg SagaConfig) *BookingSaga {
	defaults := DefaultSagaConfig()
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = defaults.LedgerTimeout
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = defaults.ReleaseTimeout
	}
	if cfg.ReleaseAttempts < 1 {
		cfg.ReleaseAttempts = 1
	}
	if cfg.ReleaseBackoff <= 0 {
		cfg.ReleaseBackoff = defaults.ReleaseBackoff
	}
	if cfg.EscalateTimeout <= 0 {
		cfg.EscalateTimeout = defaults.EscalateTimeout
	}
	return &BookingSaga{
		accounts:  deps.Accounts,
		inventory: deps.Inventory,
		ledger:    deps.Ledger,
		escalator: deps.Escalator,
		metrics:   deps.Metrics,
		log:       deps.Logger,
		tracer:    otel.Tracer("booking-saga"),
		cfg:       cfg,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Book runs one saga and reduces its terminal state to a caller outcome:
// the booking, ErrAccountNotFound, ErrSoldOut or ErrBookingFailed.
func (s *BookingSaga) Book(ctx context.Context, req domain.BookingRequest) (domain.Booking, error) {
	saga := s.Run(ctx, req)

	switch saga.State {
	case domain.SagaStateBooked:
		return *saga.Booking, nil
	case domain.SagaStateAccountNotFound:
		return domain.Booking{}, ErrAccountNotFound
	case domain.SagaStateSoldOut:
		return domain.Booking{}, ErrSoldOut
	case domain.SagaStateCompensationFailed:
		return domain.Booking{}, errStuckCompensation
	default:
		return domain.Booking{}, ErrBookingFailed
	}
}

// Run drives a saga from Start to a terminal state and returns it.
func (s *BookingSaga) Run(ctx context.Context, req domain.BookingRequest) domain.Saga {
	start := s.now()
	if req.CorrelationID == "" {
		req.CorrelationID = s.newID()
	}

	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &s.log
	}
	logger := base.With().
		Str("correlation_id", req.CorrelationID).
		Str("resource_id", req.ResourceID).
		Logger()
	ctx = logger.WithContext(ctx)

	ctx, span := s.tracer.Start(ctx, "saga.Book", trace.WithAttributes(
		attribute.String("booking.correlation_id", req.CorrelationID),
		attribute.String("booking.resource_id", req.ResourceID),
	))
	defer span.End()

	logger.Info().Str("identity", req.Identity).Msg("booking saga started")

	saga := domain.NewSaga(req, start)
	for !saga.State.Terminal() {
		switch saga.State {
		case domain.SagaStateStart:
			s.lookupAccount(ctx, &saga)
		case domain.SagaStateReserve:
			s.reserve(ctx, &saga)
		case domain.SagaStatePersist:
			s.persist(ctx, &saga)
		case domain.SagaStateCompensate:
			s.compensate(ctx, &saga)
		default:
			saga.Cause = fmt.Errorf("unknown saga state %q", saga.State)
			saga.Transition(domain.SagaStateBookingFailed, s.now())
		}
	}

	span.SetAttributes(attribute.String("booking.outcome", string(saga.State)))
	if saga.State != domain.SagaStateBooked && saga.Cause != nil {
		span.SetStatus(codes.Error, string(saga.State))
	}
	s.metrics.ObserveSaga(string(saga.State), s.now().Sub(start))

	return saga
}

func (s *BookingSaga) lookupAccount(ctx context.Context, saga *domain.Saga) {
	ctx, span := s.tracer.Start(ctx, "saga.LookupAccount")
	defer span.End()
	log := zerolog.Ctx(ctx)

	account, err := s.accounts.FindActiveAccount(ctx, saga.Request.Identity)
	if err != nil {
		span.RecordError(err)
		saga.Cause = fmt.Errorf("lookup account: %w", err)
		log.Error().Err(saga.Cause).Msg("account lookup failed")
		saga.Transition(domain.SagaStateBookingFailed, s.now())
		return
	}
	if account == nil || !account.Active {
		log.Warn().Str("identity", saga.Request.Identity).Msg("account not found")
		saga.Transition(domain.SagaStateAccountNotFound, s.now())
		return
	}

	saga.AccountID = account.ID
	log.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Int64("account_id", account.ID)
	})
	saga.Transition(domain.SagaStateReserve, s.now())
}

func (s *BookingSaga) reserve(ctx context.Context, saga *domain.Saga) {
	ctx, span := s.tracer.Start(ctx, "saga.Reserve")
	defer span.End()
	log := zerolog.Ctx(ctx)

	reservationID := s.newID()
	span.SetAttributes(attribute.String("booking.reservation_id", reservationID))

	res, err := s.inventory.Reserve(ctx, saga.Request.ResourceID, reservationID)
	switch {
	case err == nil:
		saga.Reservation = &res
		saga.Transition(domain.SagaStatePersist, s.now())
	case errors.Is(err, port.ErrUnavailable):
		log.Warn().Int64("account_id", saga.AccountID).Msg("sold out")
		saga.Transition(domain.SagaStateSoldOut, s.now())
	default:
		// The script may have applied with the reply lost. Releasing the
		// same reservation id is harmless if it did not.
		span.RecordError(err)
		saga.Cause = fmt.Errorf("reserve: %w", err)
		saga.Reservation = &domain.Reservation{ID: reservationID, ResourceID: saga.Request.ResourceID}
		log.Error().Err(saga.Cause).Str("reservation_id", reservationID).Msg("reservation outcome unknown")
		saga.Transition(domain.SagaStateCompensate, s.now())
	}
}

func (s *BookingSaga) persist(ctx context.Context, saga *domain.Saga) {
	ctx, span := s.tracer.Start(ctx, "saga.Persist")
	defer span.End()
	log := zerolog.Ctx(ctx)

	ledgerCtx, cancel := context.WithTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()

	booking, err := s.writeLedger(ledgerCtx, saga)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger write failed")
		saga.Cause = err
		log.Error().Err(err).
			Int64("account_id", saga.AccountID).
			Str("reservation_id", saga.Reservation.ID).
			Msg("ledger write failed")
		saga.Transition(domain.SagaStateCompensate, s.now())
		return
	}
	saga.Booking = &booking

	confirmCtx, cancelConfirm := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ReleaseTimeout)
	defer cancelConfirm()
	if err := s.inventory.Confirm(confirmCtx, saga.Reservation.ResourceID, saga.Reservation.ID); err != nil {
		log.Warn().Err(err).Str("reservation_id", saga.Reservation.ID).Msg("hold not cleared after booking")
	}

	log.Info().
		Str("booking_id", booking.ID).
		Int64("account_id", saga.AccountID).
		Msg("booking committed")
	saga.Transition(domain.SagaStateBooked, s.now())
}

func (s *BookingSaga) writeLedger(ctx context.Context, saga *domain.Saga) (domain.Booking, error) {
	tx, err := s.ledger.BeginTx(ctx)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("begin ledger tx: %w", err)
	}

	booking, err := s.ledger.InsertBooking(ctx, tx, domain.BookingDraft{
		AccountID:           saga.AccountID,
		ResourceID:          saga.Reservation.ResourceID,
		ResourceDisplayName: saga.Reservation.DisplayName,
		CreatedBy:           saga.Request.Identity,
	})
	if err != nil {
		s.rollback(ctx, tx)
		return domain.Booking{}, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.rollback(ctx, tx)
		return domain.Booking{}, fmt.Errorf("commit ledger tx: %w", err)
	}
	return booking, nil
}

func (s *BookingSaga) rollback(ctx context.Context, tx port.LedgerTx) {
	if err := tx.Rollback(); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("ledger rollback")
	}
}

func (s *BookingSaga) compensate(ctx context.Context, saga *domain.Saga) {
	// Compensation must outlive a caller that has gone away.
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "saga.Compensate")
	defer span.End()
	log := zerolog.Ctx(ctx)
	res := saga.Reservation

	attempts, err := s.releaseWithRetry(ctx, res)
	if err == nil {
		s.metrics.Compensation("released")
		log.Warn().
			AnErr("cause", saga.Cause).
			Str("reservation_id", res.ID).
			Int("attempts", attempts).
			Msg("compensation applied")
		saga.Transition(domain.SagaStateBookingFailed, s.now())
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "compensation failed")
	saga.CompensationErr = err
	s.metrics.Compensation("failed")
	s.metrics.CompensationFailed()

	incident := domain.CompensationIncident{
		ID:            s.newID(),
		CorrelationID: saga.Request.CorrelationID,
		ResourceID:    res.ResourceID,
		ReservationID: res.ID,
		AccountID:     saga.AccountID,
		Reason:        err.Error(),
		Attempts:      attempts,
		DetectedAt:    s.now().UTC(),
	}
	logging.Incident(log).
		Err(err).
		AnErr("cause", saga.Cause).
		Str("incident_id", incident.ID).
		Str("reservation_id", res.ID).
		Int64("account_id", saga.AccountID).
		Int("attempts", attempts).
		Msg("compensation failed: inventory undercounts by one unit")

	if s.escalator != nil {
		escCtx, cancel := context.WithTimeout(ctx, s.cfg.EscalateTimeout)
		defer cancel()
		if escErr := s.escalator.Escalate(escCtx, incident); escErr != nil {
			logging.Incident(log).Err(escErr).Str("incident_id", incident.ID).Msg("escalation failed")
		}
	}

	saga.Transition(domain.SagaStateCompensationFailed, s.now())
}

// releaseWithRetry stops early on errors that no retry can fix.
func (s *BookingSaga) releaseWithRetry(ctx context.Context, res *domain.Reservation) (int, error) {
	backoff := s.cfg.ReleaseBackoff
	var err error
	for attempt := 1; attempt <= s.cfg.ReleaseAttempts; attempt++ {
		releaseCtx, cancel := context.WithTimeout(ctx, s.cfg.ReleaseTimeout)
		err = s.inventory.Release(releaseCtx, res.ResourceID, res.ID)
		cancel()
		if err == nil || permanentReleaseError(err) {
			return attempt, err
		}
		if attempt < s.cfg.ReleaseAttempts {
			zerolog.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("release failed, retrying")
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return s.cfg.ReleaseAttempts, err
}

func permanentReleaseError(err error) bool {
	return errors.Is(err, port.ErrResourceNotFound) || errors.Is(err, port.ErrOverRelease)
}
