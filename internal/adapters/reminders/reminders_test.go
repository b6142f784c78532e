package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/adapters/memory"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	var taskID string
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			taskID = o.Value().(string)
		}
	}
	args := m.Called(taskID)
	return &asynq.TaskInfo{ID: taskID}, args.Error(0)
}

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) DeleteTask(queue, id string) error {
	return m.Called(queue, id).Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendText(ctx context.Context, to, body string) error {
	return m.Called(to, body).Error(0)
}

func testBooking(t *testing.T, start time.Time) *entities.Booking {
	t.Helper()
	b := &entities.Booking{
		ID: "b-1", Kind: entities.BookingKindAppointment, RequesterID: "req-1", ProviderID: "prov-1",
		Beneficiary:     entities.Beneficiary{ID: "pat-1", Name: "Asha", Phone: "+919800000000"},
		DurationMinutes: 30,
	}
	require.NoError(t, b.PlaceAt(start.Format(entities.DateLayout), entities.ClockTime(start.Hour()*60+start.Minute()), time.UTC))
	b.Open(entities.SystemActor, "", start.Add(-24*time.Hour))
	return b
}

func TestScheduler_ScheduleEnqueuesFutureReminders(t *testing.T) {
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	client := new(mockEnqueuer)
	client.On("EnqueueContext", "reminder:b-1:at_start").Return(nil)
	client.On("EnqueueContext", "reminder:b-1:at_end").Return(asynq.ErrTaskIDConflict)

	s := &Scheduler{client: client, queue: "reminders", now: func() time.Time {
		// 20 minutes before start: the 30-minute reminder is already due.
		return start.Add(-20 * time.Minute)
	}}

	require.NoError(t, s.Schedule(context.Background(), testBooking(t, start)))
	client.AssertNumberOfCalls(t, "EnqueueContext", 2)
	client.AssertNotCalled(t, "EnqueueContext", "reminder:b-1:before_30m")
}

func TestScheduler_ScheduleReportsFailures(t *testing.T) {
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	client := new(mockEnqueuer)
	client.On("EnqueueContext", mock.Anything).Return(errors.New("redis down"))

	s := &Scheduler{client: client, queue: "reminders", now: func() time.Time { return start.Add(-time.Hour) }}
	err := s.Schedule(context.Background(), testBooking(t, start))
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "EnqueueContext", 3)
}

func TestScheduler_CancelIgnoresMissingTasks(t *testing.T) {
	deleter := new(mockDeleter)
	deleter.On("DeleteTask", "reminders", "reminder:b-1:before_30m").Return(nil)
	deleter.On("DeleteTask", "reminders", "reminder:b-1:at_start").Return(asynq.ErrTaskNotFound)
	deleter.On("DeleteTask", "reminders", "reminder:b-1:at_end").Return(asynq.ErrQueueNotFound)

	s := &Scheduler{inspector: deleter, queue: "reminders", now: time.Now}
	assert.NoError(t, s.Cancel(context.Background(), "b-1"))
	deleter.AssertExpectations(t)
}

func TestHandler_SendsReminderForOpenBooking(t *testing.T) {
	store := memory.NewStore()
	b := testBooking(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Bookings().Create(context.Background(), b))

	sender := new(mockSender)
	sender.On("SendText", "+919800000000", ReminderText(b, entities.ReminderBefore30m)).Return(nil)

	body, _ := json.Marshal(Payload{BookingID: "b-1", Kind: entities.ReminderBefore30m})
	err := NewHandler(store.Bookings(), sender).ProcessTask(context.Background(), asynq.NewTask(TypeSendReminder, body))
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestHandler_DropsReminderForCancelledBooking(t *testing.T) {
	store := memory.NewStore()
	b := testBooking(t, time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, b.Transition(entities.StatusCancelled, entities.SystemActor, "", time.Now()))
	require.NoError(t, store.Bookings().Create(context.Background(), b))

	sender := new(mockSender)
	body, _ := json.Marshal(Payload{BookingID: "b-1", Kind: entities.ReminderAtStart})
	err := NewHandler(store.Bookings(), sender).ProcessTask(context.Background(), asynq.NewTask(TypeSendReminder, body))
	require.NoError(t, err)
	sender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything)
}

func TestHandler_InvalidPayloadSkipsRetry(t *testing.T) {
	err := NewHandler(memory.NewStore().Bookings(), new(mockSender)).
		ProcessTask(context.Background(), asynq.NewTask(TypeSendReminder, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
