package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

var admin = Actor{ID: "admin-1", Role: RoleAdmin}

func newBooking(kind BookingKind) *Booking {
	b := &Booking{ID: "b-1", Kind: kind}
	b.Open(Actor{ID: "req-1", Role: RoleRequester}, "created", time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	return b
}

func TestBooking_OpenWritesFirstHistoryEntry(t *testing.T) {
	appt := newBooking(BookingKindAppointment)
	lab := newBooking(BookingKindLab)

	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, LabRequested, lab.Status)
	require.Len(t, appt.StatusHistory, 1)
	assert.Equal(t, StatusScheduled, appt.StatusHistory[0].Status)
}

func TestAppointmentLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		to      BookingStatus
		errType apperrors.ErrorType
	}{
		{"complete", StatusCompleted, ""},
		{"cancel", StatusCancelled, ""},
		{"no-show", StatusNoShow, ""},
		{"same state", StatusScheduled, apperrors.ErrorTypeConflict},
		{"lab status", LabConfirmed, apperrors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooking(BookingKindAppointment)
			err := b.Transition(tt.to, admin, "", time.Now())
			if tt.errType == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.to, b.Status)
				assert.Len(t, b.StatusHistory, 2)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType), "got %v", err)
			assert.Len(t, b.StatusHistory, 1)
		})
	}
}

func TestLabLifecycle_FullPipeline(t *testing.T) {
	b := newBooking(BookingKindLab)
	pipeline := []BookingStatus{
		LabConfirmed, LabSamplePickupScheduled, LabSamplePickedUp, LabTestScheduled,
		LabReportReady, LabCollectionApproved, LabCompleted,
	}

	for _, s := range pipeline {
		require.NoError(t, b.Transition(s, admin, "", time.Now()), "to %s", s)
	}

	assert.True(t, b.IsTerminal())
	last, ok := b.LatestEntry()
	require.True(t, ok)
	assert.Equal(t, b.Status, last.Status)
	assert.Len(t, b.StatusHistory, len(pipeline)+1)
}

func TestLabLifecycle_SkippingStepsIsRejected(t *testing.T) {
	b := newBooking(BookingKindLab)
	err := b.Transition(LabReportReady, admin, "", time.Now())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestLabLifecycle_CancelAndRejectFromAnyOpenState(t *testing.T) {
	for _, terminal := range []BookingStatus{LabCancelled, LabRejected} {
		b := newBooking(BookingKindLab)
		require.NoError(t, b.Transition(LabConfirmed, admin, "", time.Now()))
		require.NoError(t, b.Transition(LabSamplePickupScheduled, admin, "", time.Now()))
		require.NoError(t, b.Transition(terminal, admin, "", time.Now()))
		assert.True(t, b.IsCancelled())
	}
}

func TestTransition_TerminalStatesAreFinal(t *testing.T) {
	b := newBooking(BookingKindAppointment)
	require.NoError(t, b.Transition(StatusCancelled, admin, "", time.Now()))

	err := b.Transition(StatusCancelled, admin, "", time.Now())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Contains(t, err.Error(), "already in that state")

	err = b.Transition(StatusCompleted, admin, "", time.Now())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestLifecycle_CapacityRelease(t *testing.T) {
	assert.True(t, LifecycleFor(BookingKindAppointment).ReleasesCapacity(StatusCancelled))
	assert.False(t, LifecycleFor(BookingKindAppointment).ReleasesCapacity(StatusNoShow))
	assert.True(t, LifecycleFor(BookingKindLab).ReleasesCapacity(LabRejected))
	assert.False(t, LifecycleFor(BookingKindLab).ReleasesCapacity(LabCompleted))
}
