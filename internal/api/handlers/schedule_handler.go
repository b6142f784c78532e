package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// ScheduleService defines schedule change operations
type ScheduleService interface {
	RequestChange(ctx context.Context, actor entities.Actor, window *entities.ScheduleWindow) (*entities.ScheduleWindow, error)
	Approve(ctx context.Context, id string, reviewer entities.Actor, note string) (*entities.ScheduleWindow, error)
	Reject(ctx context.Context, id string, reviewer entities.Actor, note string) (*entities.ScheduleWindow, error)
	GetApproved(ctx context.Context, providerID string, modality entities.Modality) (*entities.ScheduleWindow, error)
}

// ScheduleHandler handles provider schedule requests
type ScheduleHandler struct {
	service ScheduleService
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(service ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// RequestChange handles POST /api/providers/{id}/schedules
func (h *ScheduleHandler) RequestChange(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var body struct {
		Modality entities.Modality      `json:"modality"`
		Days     []entities.ScheduleDay `json:"days"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	window, err := h.service.RequestChange(r.Context(), actor, &entities.ScheduleWindow{
		ProviderID: r.PathValue("id"),
		Modality:   body.Modality,
		Days:       body.Days,
	})
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, "schedule change requested", window)
}

// GetApproved handles GET /api/providers/{id}/schedules/approved?modality=
func (h *ScheduleHandler) GetApproved(w http.ResponseWriter, r *http.Request) {
	modality := entities.Modality(r.URL.Query().Get("modality"))
	if modality == "" {
		modality = entities.ModalityInPerson
	}

	window, err := h.service.GetApproved(r.Context(), r.PathValue("id"), modality)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "schedule retrieved", window)
}

// Approve handles POST /api/admin/schedules/{id}/approve
func (h *ScheduleHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve, "schedule approved")
}

// Reject handles POST /api/admin/schedules/{id}/reject
func (h *ScheduleHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject, "schedule rejected")
}

type reviewFunc func(ctx context.Context, id string, reviewer entities.Actor, note string) (*entities.ScheduleWindow, error)

func (h *ScheduleHandler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc, message string) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var body struct {
		Note string `json:"note"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}

	window, err := fn(r.Context(), r.PathValue("id"), actor, body.Note)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, message, window)
}
