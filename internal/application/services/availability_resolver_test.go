package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

func TestAvailabilityResolver_Resolve(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	resolver := NewAvailabilityResolver(nil)

	tests := []struct {
		name     string
		modality entities.Modality
		date     string
		start    string
		end      string
		wantErr  string
	}{
		{"inside window", entities.ModalityInPerson, "2024-06-10", "10:00", "10:30", ""},
		{"range end is inclusive", entities.ModalityInPerson, "2024-06-10", "11:30", "12:00", ""},
		{"after window", entities.ModalityInPerson, "2024-06-10", "13:00", "13:30", "outside availability"},
		{"straddles end", entities.ModalityInPerson, "2024-06-10", "11:45", "12:15", "outside availability"},
		{"no ranges that day", entities.ModalityInPerson, "2024-06-11", "10:00", "10:30", "no availability"},
		{"no approved window for modality", entities.ModalityRemote, "2024-06-10", "10:00", "10:30", "no availability"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resolver.Resolve(context.Background(), h.store, SlotRequest{
				ProviderID: testProvider,
				Modality:   tt.modality,
				Date:       tt.date,
				Start:      entities.MustClock(tt.start),
				End:        entities.MustClock(tt.end),
			})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAvailabilityResolver_RejectsPaidOverlap(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	created, err := h.bookings.Create(ctx, requester, appointmentRequest("10:00"))
	require.NoError(t, err)
	h.confirmDirect(created.ID, "pi_1")

	req := SlotRequest{
		ProviderID: testProvider,
		Modality:   entities.ModalityInPerson,
		Date:       "2024-06-10",
		Start:      entities.MustClock("10:00"),
		End:        entities.MustClock("10:30"),
	}
	err = NewAvailabilityResolver(nil).Resolve(ctx, h.store, req)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Contains(t, err.Error(), "slot already booked")

	req.ExcludeBookingID = created.ID
	assert.NoError(t, NewAvailabilityResolver(nil).Resolve(ctx, h.store, req))
}
