// Package reminders schedules and delivers slot reminders through asynq.
package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
)

// TypeSendReminder is the asynq task type of a slot reminder.
const TypeSendReminder = "reminder:send"

// Payload is the body of a reminder task.
type Payload struct {
	BookingID string                `json:"booking_id"`
	Kind      entities.ReminderKind `json:"kind"`
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskDeleter interface {
	DeleteTask(queue, id string) error
}

// Scheduler enqueues one task per reminder kind at its send time.
type Scheduler struct {
	client    enqueuer
	inspector taskDeleter
	queue     string
	now       func() time.Time
}

// NewScheduler creates a reminder scheduler on the given asynq connection.
func NewScheduler(opt asynq.RedisConnOpt, queue string) *Scheduler {
	return &Scheduler{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
		now:       time.Now,
	}
}

// TaskID is deterministic so a reminder is enqueued at most once per booking.
func TaskID(bookingID string, kind entities.ReminderKind) string {
	return fmt.Sprintf("reminder:%s:%s", bookingID, kind)
}

// Schedule enqueues the reminders that are still in the future.
func (s *Scheduler) Schedule(ctx context.Context, booking *entities.Booking) error {
	now := s.now()
	var errs []error
	for _, kind := range entities.ReminderKinds {
		at := kind.SendAt(booking)
		if !at.After(now) {
			continue
		}

		body, err := json.Marshal(Payload{BookingID: booking.ID, Kind: kind})
		if err != nil {
			return err
		}
		task := asynq.NewTask(TypeSendReminder, body)
		_, err = s.client.EnqueueContext(ctx, task,
			asynq.ProcessAt(at),
			asynq.TaskID(TaskID(booking.ID, kind)),
			asynq.Queue(s.queue),
			asynq.MaxRetry(3),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			errs = append(errs, fmt.Errorf("enqueue %s reminder: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// Cancel deletes every pending reminder of the booking.
func (s *Scheduler) Cancel(ctx context.Context, bookingID string) error {
	var errs []error
	for _, kind := range entities.ReminderKinds {
		err := s.inspector.DeleteTask(s.queue, TaskID(bookingID, kind))
		if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			errs = append(errs, fmt.Errorf("delete %s reminder: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the asynq connections.
func (s *Scheduler) Close() error {
	var errs []error
	if c, ok := s.client.(*asynq.Client); ok {
		errs = append(errs, c.Close())
	}
	if i, ok := s.inspector.(*asynq.Inspector); ok {
		errs = append(errs, i.Close())
	}
	return errors.Join(errs...)
}

// NoopScheduler is used when reminders are disabled.
type NoopScheduler struct{}

func (NoopScheduler) Schedule(ctx context.Context, booking *entities.Booking) error { return nil }
func (NoopScheduler) Cancel(ctx context.Context, bookingID string) error           { return nil }

var (
	_ providers.ReminderScheduler = (*Scheduler)(nil)
	_ providers.ReminderScheduler = NoopScheduler{}
)
