package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/pkg/retry"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event *entities.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() error { return nil }

func syncNotifications(p *mockPublisher) *NotificationService {
	n := NewNotificationService(p)
	n.dispatch = func(f func()) { f() }
	n.retry = retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	return n
}

func TestNotificationService_CancelledNotifiesOversight(t *testing.T) {
	p := new(mockPublisher)
	p.On("Publish", mock.Anything, mock.Anything).Return(nil)

	b := &entities.Booking{ID: "b-1", RequesterID: "user-1", ProviderID: "prov-1", ScheduledDate: "2024-06-10", ScheduledTime: entities.MustClock("10:00")}
	syncNotifications(p).Cancelled(context.Background(), b, "sick")

	var recipients []string
	for _, call := range p.Calls {
		event := call.Arguments.Get(1).(*entities.BookingEvent)
		if event.Notification == nil {
			assert.Equal(t, entities.BookingEventCancelled, event.Type)
			continue
		}
		assert.Equal(t, entities.BookingEventNotification, event.Type)
		assert.Contains(t, event.Notification.Message, "Reason: sick")
		recipients = append(recipients, event.Notification.RecipientID)
	}
	assert.ElementsMatch(t, []string{"user-1", "prov-1", AdminRecipient}, recipients)
}

func TestNotificationService_EnqueueRetries(t *testing.T) {
	p := new(mockPublisher)
	p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	p.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	err := syncNotifications(p).Enqueue(context.Background(), entities.Notification{RecipientID: "user-1", Title: "t", Message: "m"})
	require.NoError(t, err)
	p.AssertNumberOfCalls(t, "Publish", 2)
}

func TestNotificationService_FailuresDoNotPropagate(t *testing.T) {
	p := new(mockPublisher)
	p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	b := &entities.Booking{ID: "b-1", RequesterID: "user-1", ProviderID: "prov-1"}
	assert.NotPanics(t, func() {
		syncNotifications(p).PaymentConfirmed(context.Background(), b)
	})
}

func TestNotificationService_NilIsNoop(t *testing.T) {
	var n *NotificationService
	assert.NotPanics(t, func() {
		n.StatusChanged(context.Background(), &entities.Booking{ID: "b-1"})
	})
}
