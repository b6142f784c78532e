package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/carebook/backend/internal/application/services"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
)

// maxOutcomeUpload bounds multipart outcome uploads.
const maxOutcomeUpload = 20 << 20

// AdminBookingService defines the back-office booking operations
type AdminBookingService interface {
	List(ctx context.Context, filter repositories.BookingFilter) ([]*services.BookingWithPayment, error)
	UpdateStatus(ctx context.Context, id string, actor entities.Actor, status entities.BookingStatus, note string) (*entities.Booking, error)
	UploadOutcome(ctx context.Context, id string, actor entities.Actor, req services.UploadOutcomeRequest) (*entities.OutcomeArtifact, error)
}

// AdminHandler handles admin and provider back-office requests
type AdminHandler struct {
	service AdminBookingService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service AdminBookingService) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListBookings handles GET /api/admin/bookings. Providers only see their own bookings.
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := repositories.BookingFilter{
		Kind:        entities.BookingKind(q.Get("kind")),
		Status:      entities.BookingStatus(q.Get("status")),
		ProviderID:  q.Get("provider_id"),
		RequesterID: q.Get("requester_id"),
	}
	if actor.Role == entities.RoleProvider {
		filter.ProviderID = actor.ID
	}

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithStatus(w, http.StatusBadRequest, "invalid "+name+" date format (use RFC3339)")
			return
		}
		*dst = &t
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		respondWithStatus(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		respondWithStatus(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	bookings, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "bookings retrieved", map[string]interface{}{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// UpdateStatus handles PATCH /api/admin/bookings/{id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var body struct {
		Status entities.BookingStatus `json:"status"`
		Note   string                 `json:"note"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status == "" {
		respondWithStatus(w, http.StatusBadRequest, "status is required")
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), r.PathValue("id"), actor, body.Status, body.Note)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "booking status updated", booking)
}

// UploadOutcome handles POST /api/admin/bookings/{id}/outcome (multipart, field "file")
func (h *AdminHandler) UploadOutcome(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxOutcomeUpload)
	if err := r.ParseMultipartForm(maxOutcomeUpload); err != nil {
		respondWithStatus(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithStatus(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	artifact, err := h.service.UploadOutcome(r.Context(), r.PathValue("id"), actor, services.UploadOutcomeRequest{
		Kind:     entities.OutcomeKind(r.FormValue("kind")),
		FileName: header.Filename,
		Content:  file,
	})
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, "outcome uploaded", artifact)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
