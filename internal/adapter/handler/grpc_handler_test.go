package handler

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/ticket-booking/internal/adapter/handler/bookingpb"
	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/core/service"
)

func newTestClient(t *testing.T, booker Booker, lister BookingLister) bookingpb.BookingServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogger(zerolog.Nop())))
	bookingpb.RegisterBookingServiceServer(srv, NewGRPCHandler(booker, lister))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return bookingpb.NewBookingServiceClient(conn)
}

func TestGRPCBook_Success(t *testing.T) {
	booker := &fakeBooker{}
	client := newTestClient(t, booker, &fakeLister{})

	resp, err := client.Book(context.Background(), &bookingpb.BookRequest{
		Identity:      "user-7",
		ResourceId:    "event-1",
		CorrelationId: "corr-1",
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if resp.Booking.BookingId != "booking-1" || resp.Booking.ResourceDisplayName != "Concert" {
		t.Errorf("unexpected booking: %+v", resp.Booking)
	}
	if booker.last.CorrelationID != "corr-1" {
		t.Errorf("correlation id not forwarded: %+v", booker.last)
	}
}

func TestGRPCBook_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"account not found", service.ErrAccountNotFound, codes.NotFound},
		{"sold out", service.ErrSoldOut, codes.FailedPrecondition},
		{"booking failed", service.ErrBookingFailed, codes.Aborted},
		{"unexpected", errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &fakeBooker{err: tt.err}, &fakeLister{})

			_, err := client.Book(context.Background(), &bookingpb.BookRequest{Identity: "user-7", ResourceId: "event-1"})
			if status.Code(err) != tt.code {
				t.Errorf("expected code %v, got %v", tt.code, status.Code(err))
			}
		})
	}
}

func TestGRPCBook_Validation(t *testing.T) {
	client := newTestClient(t, &fakeBooker{}, &fakeLister{})

	_, err := client.Book(context.Background(), &bookingpb.BookRequest{ResourceId: "event-1"})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", status.Code(err))
	}

	_, err = client.Book(context.Background(), &bookingpb.BookRequest{Identity: "user-7"})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", status.Code(err))
	}

	_, err = client.Book(context.Background(), &bookingpb.BookRequest{
		Identity:   "user-7",
		ResourceId: strings.Repeat("r", domain.MaxResourceIDLen+1),
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for long resource id, got %v", status.Code(err))
	}
}

func TestGRPCBook_RequestIDBecomesCorrelationID(t *testing.T) {
	booker := &fakeBooker{}
	client := newTestClient(t, booker, &fakeLister{})

	if _, err := client.Book(context.Background(), &bookingpb.BookRequest{Identity: "user-7", ResourceId: "event-1"}); err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if _, err := uuid.Parse(booker.last.CorrelationID); err != nil {
		t.Errorf("expected minted request id as correlation id, got %q", booker.last.CorrelationID)
	}
}

func TestUnaryLogger_ReusesCorrelationID(t *testing.T) {
	var got string
	handler := func(ctx context.Context, req any) (any, error) {
		got = middleware.GetReqID(ctx)
		return nil, nil
	}

	intercept := UnaryLogger(zerolog.Nop())
	info := &grpc.UnaryServerInfo{FullMethod: bookingpb.BookMethod}

	intercept(context.Background(), &bookingpb.BookRequest{CorrelationId: "corr-9"}, info, handler)
	if got != "corr-9" {
		t.Errorf("expected request id corr-9, got %q", got)
	}

	intercept(context.Background(), &bookingpb.ListBookingsRequest{Identity: "user-7"}, info, handler)
	if got == "" {
		t.Error("expected a minted request id")
	}
}

func TestGRPCListBookings(t *testing.T) {
	lister := &fakeLister{bookings: []domain.Booking{
		{ID: "b2", ResourceID: "event-2"},
		{ID: "b1", ResourceID: "event-1"},
	}}
	client := newTestClient(t, &fakeBooker{}, lister)

	resp, err := client.ListBookings(context.Background(), &bookingpb.ListBookingsRequest{Identity: "user-7"})
	if err != nil {
		t.Fatalf("ListBookings failed: %v", err)
	}
	if len(resp.Bookings) != 2 || resp.Bookings[0].BookingId != "b2" {
		t.Errorf("unexpected bookings: %+v", resp.Bookings)
	}
}

func TestGRPCListBookings_AccountNotFound(t *testing.T) {
	client := newTestClient(t, &fakeBooker{}, &fakeLister{err: service.ErrAccountNotFound})

	_, err := client.ListBookings(context.Background(), &bookingpb.ListBookingsRequest{Identity: "ghost"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", status.Code(err))
	}
}
