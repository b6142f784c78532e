package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

func weekdayWindow(start, end string) *entities.ScheduleWindow {
	return &entities.ScheduleWindow{
		ProviderID: testProvider,
		Modality:   entities.ModalityRemote,
		Days: []entities.ScheduleDay{{
			Day:    entities.Monday,
			Ranges: []entities.TimeRange{{Start: entities.MustClock(start), End: entities.MustClock(end)}},
		}},
	}
}

func TestScheduleService_ApproveSupersedesPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.schedules.RequestChange(ctx, provider, weekdayWindow("09:00", "12:00"))
	require.NoError(t, err)
	assert.Equal(t, entities.SchedulePending, first.Status)

	_, err = h.schedules.Approve(ctx, first.ID, admin, "")
	require.NoError(t, err)

	second, err := h.schedules.RequestChange(ctx, provider, weekdayWindow("14:00", "18:00"))
	require.NoError(t, err)
	approved, err := h.schedules.Approve(ctx, second.ID, admin, "new hours")
	require.NoError(t, err)
	assert.Equal(t, entities.ScheduleApproved, approved.Status)

	current, err := h.schedules.GetApproved(ctx, testProvider, entities.ModalityRemote)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	old, err := h.store.Schedules().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ScheduleRejected, old.Status)
	assert.Contains(t, old.Note, second.ID)
}

func TestScheduleService_Rules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.schedules.RequestChange(ctx, entities.Actor{ID: "prov-2", Role: entities.RoleProvider}, weekdayWindow("09:00", "12:00"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

	_, err = h.schedules.RequestChange(ctx, provider, weekdayWindow("12:00", "09:00"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	pending, err := h.schedules.RequestChange(ctx, provider, weekdayWindow("09:00", "12:00"))
	require.NoError(t, err)

	_, err = h.schedules.Approve(ctx, pending.ID, provider, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

	rejected, err := h.schedules.Reject(ctx, pending.ID, admin, "too short")
	require.NoError(t, err)
	assert.Equal(t, entities.ScheduleRejected, rejected.Status)
	require.NotNil(t, rejected.ReviewedBy)
	assert.Equal(t, admin.ID, *rejected.ReviewedBy)

	_, err = h.schedules.Approve(ctx, pending.ID, admin, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	_, err = h.schedules.GetApproved(ctx, testProvider, entities.ModalityRemote)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
