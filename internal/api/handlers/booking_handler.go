package handlers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/zatekoja/carebook/backend/internal/application/services"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// BookingService defines the booking operations exposed over HTTP
type BookingService interface {
	Create(ctx context.Context, actor entities.Actor, req services.CreateBookingRequest) (*services.BookingWithPayment, error)
	Get(ctx context.Context, id string, actor entities.Actor) (*services.BookingWithPayment, error)
	Reschedule(ctx context.Context, id string, actor entities.Actor, date string, clock entities.ClockTime) (*entities.Booking, error)
	Cancel(ctx context.Context, id string, actor entities.Actor, reason string) (*entities.Booking, error)
	CheckSlot(ctx context.Context, q services.SlotCheck) error
	ListSlots(ctx context.Context, providerID, date string) ([]entities.SlotAvailability, error)
}

// BookingHandler handles booking requests
type BookingHandler struct {
	service BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(service BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

type createBookingRequest struct {
	Kind           entities.BookingKind `json:"kind"`
	RequesterID    string               `json:"requester_id"`
	Beneficiary    entities.Beneficiary `json:"beneficiary"`
	ProviderID     string               `json:"provider_id"`
	Resource       entities.ResourceRef `json:"resource"`
	Date           string               `json:"date"`
	Time           entities.ClockTime   `json:"time"`
	Modality       entities.Modality    `json:"modality"`
	HomeCollection bool                 `json:"home_collection"`
	Location       string               `json:"location"`
	Discount       decimal.Decimal      `json:"discount"`
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var body createBookingRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	booking, err := h.service.Create(r.Context(), actor, services.CreateBookingRequest{
		Kind:           body.Kind,
		RequesterID:    body.RequesterID,
		Beneficiary:    body.Beneficiary,
		ProviderID:     body.ProviderID,
		Resource:       body.Resource,
		Date:           body.Date,
		Time:           body.Time,
		Modality:       body.Modality,
		HomeCollection: body.HomeCollection,
		Location:       body.Location,
		Discount:       body.Discount,
	})
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, "booking created", booking)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	booking, err := h.service.Get(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "booking retrieved", booking)
}

// CancelBooking handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}

	booking, err := h.service.Cancel(r.Context(), r.PathValue("id"), actor, body.Reason)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "booking cancelled", booking)
}

// RescheduleBooking handles POST /api/bookings/{id}/reschedule
func (h *BookingHandler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var body struct {
		Date string             `json:"date"`
		Time entities.ClockTime `json:"time"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Date == "" {
		respondWithStatus(w, http.StatusBadRequest, "date is required")
		return
	}

	booking, err := h.service.Reschedule(r.Context(), r.PathValue("id"), actor, body.Date, body.Time)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "booking rescheduled", booking)
}

// ListSlots handles GET /api/providers/{id}/slots?date=
func (h *BookingHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		respondWithStatus(w, http.StatusBadRequest, "date query parameter is required")
		return
	}

	slots, err := h.service.ListSlots(r.Context(), r.PathValue("id"), date)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "slots retrieved", map[string]interface{}{
		"date":  date,
		"slots": slots,
	})
}

// CheckSlot handles GET /api/providers/{id}/slots/check
func (h *BookingHandler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("date") == "" || q.Get("time") == "" {
		respondWithStatus(w, http.StatusBadRequest, "date and time query parameters are required")
		return
	}
	clock, ok := parseClock(w, q.Get("time"))
	if !ok {
		return
	}

	kind := entities.BookingKind(q.Get("kind"))
	if kind == "" {
		kind = entities.BookingKindAppointment
	}
	modality := entities.Modality(q.Get("modality"))
	if modality == "" {
		modality = entities.ModalityInPerson
	}

	err := h.service.CheckSlot(r.Context(), services.SlotCheck{
		ProviderID: r.PathValue("id"),
		Date:       q.Get("date"),
		Time:       clock,
		Kind:       kind,
		Modality:   modality,
		ServiceRef: q.Get("service_id"),
		Location:   q.Get("location"),
	})
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "slot is available", map[string]bool{"available": true})
}
