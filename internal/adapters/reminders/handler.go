package reminders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// Handler delivers reminder tasks through the message sender.
type Handler struct {
	bookings repositories.BookingRepository
	sender   providers.MessageSender
}

func NewHandler(bookings repositories.BookingRepository, sender providers.MessageSender) *Handler {
	return &Handler{bookings: bookings, sender: sender}
}

// Register adds the reminder handler to mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSendReminder, h.ProcessTask)
}

// ProcessTask sends one reminder. Reminders for bookings that are no longer
// open, or have no phone number to reach, are dropped.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("invalid reminder payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := observability.LoggerFromContext(ctx).With().
		Str("booking_id", p.BookingID).Str("reminder", string(p.Kind)).Logger()

	booking, err := h.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			logger.Warn().Msg("Reminder for unknown booking dropped")
			return nil
		}
		return err
	}
	if booking.IsTerminal() {
		logger.Debug().Str("status", string(booking.Status)).Msg("Reminder for closed booking dropped")
		return nil
	}
	if booking.Beneficiary.Phone == "" {
		logger.Debug().Msg("Reminder dropped, beneficiary has no phone")
		return nil
	}

	if err := h.sender.SendText(ctx, booking.Beneficiary.Phone, ReminderText(booking, p.Kind)); err != nil {
		logger.Error().Err(err).Msg("Failed to send reminder")
		return err
	}
	logger.Info().Msg("Reminder sent")
	return nil
}

// ReminderText renders the message body for a reminder.
func ReminderText(b *entities.Booking, kind entities.ReminderKind) string {
	when := fmt.Sprintf("%s at %s", b.ScheduledDate, b.ScheduledTime)
	switch kind {
	case entities.ReminderBefore30m:
		return fmt.Sprintf("Reminder: your booking %s on %s starts in 30 minutes.", b.ID, when)
	case entities.ReminderAtEnd:
		return fmt.Sprintf("Your booking %s on %s has ended. Thank you.", b.ID, when)
	default:
		return fmt.Sprintf("Your booking %s on %s is starting now.", b.ID, when)
	}
}
