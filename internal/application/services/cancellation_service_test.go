package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// A paid booking cancelled two hours before start is refunded once.
func TestCancellationService_RefundsCompletedPayment(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	created, err := h.bookings.Create(ctx, requester, appointmentRequest("10:00"))
	require.NoError(t, err)
	h.confirmDirect(created.ID, "pi_paid")
	require.True(t, h.booking(created.ID).PaymentCompleted)

	h.clock = created.StartsAt.Add(-2 * time.Hour)
	cancelled, err := h.cancellations.Cancel(ctx, created.ID, requester, "feeling better")
	require.NoError(t, err)

	assert.Equal(t, entities.StatusCancelled, cancelled.Status)
	requireHistoryConsistent(t, cancelled)
	latest, _ := cancelled.LatestEntry()
	assert.Equal(t, "feeling better", latest.Note)
	assert.Equal(t, requester, latest.Actor)

	record := h.payment(created.ID)
	assert.Equal(t, entities.PaymentRefunded, record.Status)
	assert.Equal(t, "pi_paid", record.CapturedPaymentID)
	assert.NotEmpty(t, record.RefundID)
	assert.Equal(t, 1, h.gateway.RefundCount())
	assert.Equal(t, 0, h.slotCount(testProvider, "10:00"))

	_, err = h.cancellations.Cancel(ctx, created.ID, admin, "again")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	assert.Equal(t, 1, h.gateway.RefundCount())

	assert.Len(t, h.publisher.notifications(entities.NotificationCancellation), 3)
	assert.Contains(t, h.reminders.cancelled, created.ID)
}

// Requesters cannot cancel inside the cutoff; admins can.
func TestCancellationService_CutoffAppliesToRequesters(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	created, err := h.bookings.Create(ctx, requester, appointmentRequest("10:00"))
	require.NoError(t, err)

	h.clock = created.StartsAt.Add(-30 * time.Minute)
	_, err = h.cancellations.Cancel(ctx, created.ID, requester, "late")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "more than 1h0m0s before the start")
	assert.Equal(t, entities.StatusScheduled, h.booking(created.ID).Status)

	cancelled, err := h.cancellations.Cancel(ctx, created.ID, admin, "requested by phone")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCancelled, cancelled.Status)
}

// Providers may cancel their own bookings inside the requester cutoff.
func TestCancellationService_CutoffExemptsProviders(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	created, err := h.bookings.Create(ctx, requester, appointmentRequest("10:00"))
	require.NoError(t, err)

	h.clock = created.StartsAt.Add(-30 * time.Minute)
	cancelled, err := h.cancellations.Cancel(ctx, created.ID, provider, "provider unavailable")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCancelled, cancelled.Status)
}

// A failed refund aborts the whole cancellation.
func TestCancellationService_RefundFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	created, err := h.bookings.Create(ctx, requester, appointmentRequest("10:00"))
	require.NoError(t, err)
	h.confirmDirect(created.ID, "pi_paid")
	h.gateway.FailRefunds(errors.New("gateway down"))

	h.clock = created.StartsAt.Add(-2 * time.Hour)
	_, err = h.cancellations.Cancel(ctx, created.ID, requester, "feeling better")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway down")

	b := h.booking(created.ID)
	assert.Equal(t, entities.StatusScheduled, b.Status)
	requireHistoryConsistent(t, b)
	assert.Equal(t, entities.PaymentCompleted, h.payment(created.ID).Status)
	assert.Empty(t, h.payment(created.ID).RefundID)
	assert.Equal(t, 1, h.slotCount(testProvider, "10:00"))
	assert.Equal(t, 0, h.gateway.RefundCount())
	assert.Empty(t, h.publisher.notifications(entities.NotificationCancellation))

	// Once the gateway recovers the same cancellation goes through.
	h.gateway.FailRefunds(nil)
	cancelled, err := h.cancellations.Cancel(ctx, created.ID, requester, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCancelled, cancelled.Status)
	assert.Equal(t, entities.PaymentRefunded, h.payment(created.ID).Status)
	assert.Equal(t, 1, h.gateway.RefundCount())
}

// An unpaid link booking is cancelled at the gateway, never refunded.
func TestCancellationService_UnpaidLinkIsDeactivated(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	created, err := h.bookings.Create(ctx, provider, appointmentRequest("10:00"))
	require.NoError(t, err)
	linkID := created.Payment.GatewayLinkID

	_, err = h.cancellations.Cancel(ctx, created.ID, provider, "provider unavailable")
	require.NoError(t, err)

	assert.True(t, h.gateway.LinkCancelled(linkID))
	assert.Equal(t, 0, h.gateway.RefundCount())
	assert.Equal(t, entities.PaymentRefunded, h.payment(created.ID).Status)
}

// A link paid while its webhook is still in flight is refunded, not just deactivated.
func TestCancellationService_RefundsInFlightLinkCapture(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	created, err := h.bookings.Create(ctx, provider, appointmentRequest("10:00"))
	require.NoError(t, err)
	h.gateway.MarkLinkPaid(created.Payment.GatewayLinkID, "pi_inflight")

	_, err = h.cancellations.Cancel(ctx, created.ID, admin, "duplicate")
	require.NoError(t, err)

	record := h.payment(created.ID)
	assert.Equal(t, "pi_inflight", record.CapturedPaymentID)
	assert.NotEmpty(t, record.RefundID)
	assert.Equal(t, 1, h.gateway.RefundCount())
	assert.False(t, h.gateway.LinkCancelled(created.Payment.GatewayLinkID))
}

func TestCancellationService_RestoresEntitlement(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	require.NoError(t, h.store.Entitlements().Create(ctx, &entities.Entitlement{
		ID: "ent-1", PayerID: requester.ID, Category: "consultation", Remaining: 2, CreatedAt: h.clock,
	}))
	created, err := h.bookings.Create(ctx, requester, appointmentRequest("10:00"))
	require.NoError(t, err)

	_, err = h.cancellations.Cancel(ctx, created.ID, requester, "")
	require.NoError(t, err)

	ent, err := h.store.Entitlements().GetForUpdate(ctx, "ent-1")
	require.NoError(t, err)
	assert.Equal(t, 2, ent.Remaining)
	assert.Equal(t, 0, h.gateway.RefundCount())
}

func TestCancellationService_Authorization(t *testing.T) {
	h := newHarness(t)
	h.approveMondayMorning()
	ctx := context.Background()

	created, err := h.bookings.Create(ctx, requester, appointmentRequest("10:00"))
	require.NoError(t, err)

	for _, actor := range []entities.Actor{
		{ID: "user-2", Role: entities.RoleRequester},
		{ID: "prov-2", Role: entities.RoleProvider},
		{ID: "", Role: "guest"},
	} {
		_, err := h.cancellations.Cancel(ctx, created.ID, actor, "")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden), "actor %v", actor)
	}

	_, err = h.cancellations.Cancel(ctx, "missing", admin, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = h.cancellations.CancelTo(ctx, created.ID, admin, "", entities.StatusCompleted)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 1, h.slotCount(testProvider, "10:00"))
}
