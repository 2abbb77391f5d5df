package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/core/service"
	"github.com/rl1809/ticket-booking/internal/logging"
)

// IdentityHeader carries the caller's account uuid, set by the auth gateway.
const IdentityHeader = "X-User-UUID"

type Booker interface {
	Book(ctx context.Context, req domain.BookingRequest) (domain.Booking, error)
}

type BookingLister interface {
	ListBookings(ctx context.Context, identity string) ([]domain.Booking, error)
}

type ResourceReader interface {
	Get(ctx context.Context, resourceID string) (*domain.Resource, error)
}

type HTTPHandler struct {
	booker    Booker
	lister    BookingLister
	resources ResourceReader
}

type BookHTTPRequest struct {
	ResourceID string `json:"resource_id"`
}

type BookingHTTPResponse struct {
	BookingID           string    `json:"booking_id"`
	ResourceID          string    `json:"resource_id"`
	ResourceDisplayName string    `json:"resource_display_name"`
	CreatedAt           time.Time `json:"created_at"`
}

type ResourceHTTPResponse struct {
	ResourceID     string `json:"resource_id"`
	DisplayName    string `json:"display_name"`
	TotalUnits     int    `json:"total_units"`
	AvailableUnits int    `json:"available_units"`
	Active         bool   `json:"active"`
}

// Envelope wraps every response body.
type Envelope struct {
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

func NewHTTPHandler(booker Booker, lister BookingLister, resources ResourceReader) *HTTPHandler {
	return &HTTPHandler{booker: booker, lister: lister, resources: resources}
}

// Routes builds the public router. gatherer backs /metrics.
func (h *HTTPHandler) Routes(log zerolog.Logger, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID(log))

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/bookings", h.Book)
		r.Get("/bookings", h.ListBookings)
		r.Get("/resources/{id}", h.GetResource)
	})

	return r
}

func (h *HTTPHandler) Book(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.Header.Get(IdentityHeader))
	if identity == "" {
		writeFailure(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req BookHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if req.ResourceID == "" {
		writeFailure(w, r, http.StatusBadRequest, "resource_id is required")
		return
	}
	if len(req.ResourceID) > domain.MaxResourceIDLen {
		writeFailure(w, r, http.StatusBadRequest, "resource_id is too long")
		return
	}

	log := logging.FromContext(r.Context())
	log.Info().Str("identity", identity).Str("resource_id", req.ResourceID).Msg("book request")

	booking, err := h.booker.Book(r.Context(), domain.BookingRequest{
		CorrelationID: middleware.GetReqID(r.Context()),
		Identity:      identity,
		ResourceID:    req.ResourceID,
	})
	if err != nil {
		status, message := bookingError(err)
		writeFailure(w, r, status, message)
		return
	}

	writeSuccess(w, r, http.StatusCreated, "Ticket booked successfully", toBookingResponse(booking))
}

func (h *HTTPHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.Header.Get(IdentityHeader))
	if identity == "" {
		writeFailure(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}

	bookings, err := h.lister.ListBookings(r.Context(), identity)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			writeFailure(w, r, http.StatusNotFound, "Account not found")
			return
		}
		logging.FromContext(r.Context()).Error().Err(err).Msg("list bookings failed")
		writeFailure(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]BookingHTTPResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	writeSuccess(w, r, http.StatusOK, "Bookings fetched successfully", map[string]any{"bookings": out})
}

func (h *HTTPHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.resources.Get(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Str("resource_id", id).Msg("read resource failed")
		writeFailure(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if res == nil {
		writeFailure(w, r, http.StatusNotFound, "Resource not found")
		return
	}

	writeSuccess(w, r, http.StatusOK, "Resource fetched successfully", ResourceHTTPResponse{
		ResourceID:     res.ID,
		DisplayName:    res.DisplayName,
		TotalUnits:     res.TotalUnits,
		AvailableUnits: res.AvailableUnits,
		Active:         res.Active,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, "OK", map[string]string{"status": "ok"})
}

// bookingError maps the saga's caller outcomes. Anything else stays opaque.
func bookingError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, service.ErrSoldOut):
		return http.StatusConflict, "Tickets are sold out for this event"
	case errors.Is(err, service.ErrBookingFailed):
		return http.StatusBadRequest, "Ticket booking failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func toBookingResponse(b domain.Booking) BookingHTTPResponse {
	return BookingHTTPResponse{
		BookingID:           b.ID,
		ResourceID:          b.ResourceID,
		ResourceDisplayName: b.ResourceDisplayName,
		CreatedAt:           b.CreatedAt,
	}
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeJSON(w, status, Envelope{
		Status:    "Success",
		Code:      status,
		Message:   message,
		Data:      data,
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func writeFailure(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, Envelope{
		Status:    "Failure",
		Code:      status,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
