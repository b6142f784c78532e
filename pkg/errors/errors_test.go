package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("bad time"), http.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no token"), http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("not yours"), http.StatusForbidden},
		{"not found", NewNotFoundError("booking not found"), http.StatusNotFound},
		{"conflict", NewConflictError("maximum capacity reached"), http.StatusConflict},
		{"external", NewExternalError("gateway down", fmt.Errorf("timeout")), http.StatusInternalServerError},
		{"invariant", NewInvariantError("refund without capture", nil), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"wrapped conflict", fmt.Errorf("create: %w", NewConflictError("slot already booked")), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage_HidesInternalDetail(t *testing.T) {
	err := NewInternalError("failed to update booking", fmt.Errorf("pq: deadlock detected"))
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Equal(t, "outside availability", PublicMessage(NewValidationError("outside availability")))
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFoundError("missing"))
	assert.True(t, IsType(err, ErrorTypeNotFound))
	assert.False(t, IsType(err, ErrorTypeConflict))
	assert.False(t, IsType(nil, ErrorTypeNotFound))
}
