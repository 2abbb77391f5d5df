package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/ticket-booking/internal/adapter/handler/bookingpb"
	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/core/service"
	"github.com/rl1809/ticket-booking/internal/logging"
)

type GRPCHandler struct {
	bookingpb.UnimplementedBookingServiceServer
	booker Booker
	lister BookingLister
}

func NewGRPCHandler(booker Booker, lister BookingLister) *GRPCHandler {
	return &GRPCHandler{booker: booker, lister: lister}
}

func (h *GRPCHandler) Book(ctx context.Context, req *bookingpb.BookRequest) (*bookingpb.BookResponse, error) {
	identity := strings.TrimSpace(req.GetIdentity())
	if identity == "" {
		return nil, status.Error(codes.Unauthenticated, "identity is required")
	}
	resourceID := strings.TrimSpace(req.GetResourceId())
	if resourceID == "" {
		return nil, status.Error(codes.InvalidArgument, "resource_id is required")
	}
	if len(resourceID) > domain.MaxResourceIDLen {
		return nil, status.Error(codes.InvalidArgument, "resource_id is too long")
	}

	correlationID := req.GetCorrelationId()
	if correlationID == "" {
		correlationID = middleware.GetReqID(ctx)
	}

	booking, err := h.booker.Book(ctx, domain.BookingRequest{
		CorrelationID: correlationID,
		Identity:      identity,
		ResourceID:    resourceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			return nil, status.Error(codes.NotFound, "account not found")
		case errors.Is(err, service.ErrSoldOut):
			return nil, status.Error(codes.FailedPrecondition, "sold out")
		case errors.Is(err, service.ErrBookingFailed):
			return nil, status.Error(codes.Aborted, "booking failed")
		default:
			return nil, status.Error(codes.Internal, "internal error")
		}
	}

	return &bookingpb.BookResponse{Booking: toPBBooking(booking)}, nil
}

func (h *GRPCHandler) ListBookings(ctx context.Context, req *bookingpb.ListBookingsRequest) (*bookingpb.ListBookingsResponse, error) {
	identity := strings.TrimSpace(req.GetIdentity())
	if identity == "" {
		return nil, status.Error(codes.Unauthenticated, "identity is required")
	}

	bookings, err := h.lister.ListBookings(ctx, identity)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return nil, status.Error(codes.NotFound, "account not found")
		}
		logging.FromContext(ctx).Error().Err(err).Msg("list bookings failed")
		return nil, status.Error(codes.Internal, "internal error")
	}

	resp := &bookingpb.ListBookingsResponse{Bookings: make([]*bookingpb.Booking, 0, len(bookings))}
	for _, b := range bookings {
		resp.Bookings = append(resp.Bookings, toPBBooking(b))
	}
	return resp, nil
}

func toPBBooking(b domain.Booking) *bookingpb.Booking {
	return &bookingpb.Booking{
		BookingId:           b.ID,
		ResourceId:          b.ResourceID,
		ResourceDisplayName: b.ResourceDisplayName,
		CreatedAtUnixMs:     b.CreatedAt.UnixMilli(),
	}
}

// UnaryLogger gives each call a logger carrying its method and a request id.
// The id is the request's correlation id when it has one.
func UnaryLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var id string
		if c, ok := req.(interface{ GetCorrelationId() string }); ok {
			id = c.GetCorrelationId()
		}
		if id == "" {
			id = uuid.NewString()
		}

		callLog := log.With().
			Str("request_id", id).
			Str("method", info.FullMethod).
			Logger()

		ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
		start := time.Now()
		resp, err := handler(callLog.WithContext(ctx), req)
		callLog.Debug().
			Str("code", status.Code(err).String()).
			Dur("elapsed", time.Since(start)).
			Msg("call served")
		return resp, err
	}
}
