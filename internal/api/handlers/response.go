package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zatekoja/carebook/backend/internal/api/middleware"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// maxJSONBody bounds request bodies decoded as JSON.
const maxJSONBody = 1 << 20

type envelope struct {
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(envelope{Data: data, Message: message, StatusCode: statusCode})
}

// RespondWithJSON writes the standard envelope for handlers outside this package.
func RespondWithJSON(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	respondWithJSON(w, statusCode, message, data)
}

func respondWithStatus(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, message, nil)
}

// respondWithError maps err onto its status code. Server-side failures are
// logged and their details withheld from the caller.
func respondWithError(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("Request failed")
	}
	respondWithStatus(w, status, apperrors.PublicMessage(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Type == apperrors.ErrorTypeValidation {
			respondWithStatus(w, http.StatusBadRequest, appErr.Message)
			return false
		}
		respondWithStatus(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

func actorFrom(w http.ResponseWriter, r *http.Request) (entities.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondWithStatus(w, http.StatusUnauthorized, "authorization required")
	}
	return actor, ok
}

func parseClock(w http.ResponseWriter, value string) (entities.ClockTime, bool) {
	clock, err := entities.ParseClock(value)
	if err != nil {
		respondWithStatus(w, http.StatusBadRequest, "time must be HH:MM")
		return 0, false
	}
	return clock, true
}
