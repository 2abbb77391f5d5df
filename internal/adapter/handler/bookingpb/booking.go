// Package bookingpb declares the booking.v1 gRPC service. Messages travel as
// JSON under the "json" content subtype.
package bookingpb

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "booking.v1.BookingService"

	BookMethod         = "/booking.v1.BookingService/Book"
	ListBookingsMethod = "/booking.v1.BookingService/ListBookings"
)

type BookRequest struct {
	Identity      string `json:"identity"`
	ResourceId    string `json:"resource_id"`
	CorrelationId string `json:"correlation_id,omitempty"`
}

func (r *BookRequest) GetIdentity() string {
	if r == nil {
		return ""
	}
	return r.Identity
}

func (r *BookRequest) GetResourceId() string {
	if r == nil {
		return ""
	}
	return r.ResourceId
}

func (r *BookRequest) GetCorrelationId() string {
	if r == nil {
		return ""
	}
	return r.CorrelationId
}

type Booking struct {
	BookingId           string `json:"booking_id"`
	ResourceId          string `json:"resource_id"`
	ResourceDisplayName string `json:"resource_display_name"`
	CreatedAtUnixMs     int64  `json:"created_at_unix_ms"`
}

type BookResponse struct {
	Booking *Booking `json:"booking"`
}

type ListBookingsRequest struct {
	Identity string `json:"identity"`
}

func (r *ListBookingsRequest) GetIdentity() string {
	if r == nil {
		return ""
	}
	return r.Identity
}

type ListBookingsResponse struct {
	Bookings []*Booking `json:"bookings"`
}

type codec struct{}

func (codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (codec) Name() string                       { return CodecName }

const CodecName = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

type BookingServiceServer interface {
	Book(context.Context, *BookRequest) (*BookResponse, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
}

// UnimplementedBookingServiceServer can be embedded to satisfy the interface.
type UnimplementedBookingServiceServer struct{}

func (UnimplementedBookingServiceServer) Book(context.Context, *BookRequest) (*BookResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Book not implemented")
}

func (UnimplementedBookingServiceServer) ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListBookings not implemented")
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingService_ServiceDesc, srv)
}

func bookHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BookRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).Book(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: BookMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).Book(ctx, req.(*BookRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listBookingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListBookingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).ListBookings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListBookingsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).ListBookings(ctx, req.(*ListBookingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var BookingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Book", Handler: bookHandler},
		{MethodName: "ListBookings", Handler: listBookingsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking.proto",
}

type BookingServiceClient interface {
	Book(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*BookResponse, error)
	ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error)
}

type bookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) BookingServiceClient {
	return &bookingServiceClient{cc: cc}
}

func (c *bookingServiceClient) Book(ctx context.Context, in *BookRequest, opts ...grpc.CallOption) (*BookResponse, error) {
	out := new(BookResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, BookMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *bookingServiceClient) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	out := new(ListBookingsResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ListBookingsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
