package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// PaymentConfirmationService marks payment records completed when the
// gateway reports a capture.
type PaymentConfirmationService struct {
	uow           repositories.UnitOfWork
	parser        providers.WebhookParser
	gateway       providers.PaymentGateway
	seen          providers.IdempotencyStore
	notifications *NotificationService
	metrics       *observability.Metrics
	signingSecret string
	dedupeTTL     time.Duration
	now           func() time.Time
}

// PaymentConfirmationConfig holds the secrets and windows of confirmation.
type PaymentConfirmationConfig struct {
	// SigningSecret verifies direct confirmations.
	SigningSecret string
	// DedupeTTL is how long webhook event ids are remembered.
	DedupeTTL time.Duration
}

// NewPaymentConfirmationService creates a new payment confirmation service
func NewPaymentConfirmationService(
	uow repositories.UnitOfWork,
	parser providers.WebhookParser,
	gateway providers.PaymentGateway,
	seen providers.IdempotencyStore,
	notifications *NotificationService,
	metrics *observability.Metrics,
	cfg PaymentConfirmationConfig,
) *PaymentConfirmationService {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 72 * time.Hour
	}
	return &PaymentConfirmationService{
		uow:           uow,
		parser:        parser,
		gateway:       gateway,
		seen:          seen,
		notifications: notifications,
		metrics:       metrics,
		signingSecret: cfg.SigningSecret,
		dedupeTTL:     cfg.DedupeTTL,
		now:           time.Now,
	}
}

type confirmOutcome int

const (
	outcomeUnchanged confirmOutcome = iota
	outcomeConfirmed
	outcomeLateRefund
)

// ConfirmFromWebhook verifies and applies a gateway webhook delivery.
// Events that do not report a capture, repeated deliveries and captures
// for unknown references are acknowledged without changes.
func (s *PaymentConfirmationService) ConfirmFromWebhook(ctx context.Context, payload []byte, signature string) error {
	ctx, span := observability.StartSpan(ctx, "PaymentConfirmationService.ConfirmFromWebhook")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	event, err := s.parser.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if !event.Paid || event.Reference == "" {
		logger.Debug().Str("event_id", event.ID).Msg("Ignoring webhook without a capture")
		return nil
	}

	dedupeKey := "webhook:" + event.ID
	if s.seen != nil && event.ID != "" {
		first, err := s.seen.MarkSeen(ctx, dedupeKey, s.dedupeTTL)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("event_id", event.ID).Msg("Webhook dedupe unavailable, relying on idempotent confirmation")
		case !first:
			logger.Info().Str("event_id", event.ID).Msg("Duplicate webhook delivery ignored")
			return nil
		}
	}

	_, err = s.confirm(ctx, event.Reference, event.CaptureID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			logger.Warn().Str("event_id", event.ID).Str("reference", event.Reference).Msg("Webhook for unknown payment reference")
			return nil
		}
		if s.seen != nil && event.ID != "" {
			if ferr := s.seen.Forget(context.WithoutCancel(ctx), dedupeKey); ferr != nil {
				logger.Warn().Err(ferr).Str("event_id", event.ID).Msg("Failed to clear webhook dedupe key")
			}
		}
		observability.RecordError(span, err)
		return err
	}
	return nil
}

// ConfirmDirect applies a client-reported capture after checking its
// signature: hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func (s *PaymentConfirmationService) ConfirmDirect(ctx context.Context, orderID, paymentID, signature string) (*entities.Booking, error) {
	ctx, span := observability.StartSpan(ctx, "PaymentConfirmationService.ConfirmDirect")
	defer span.End()

	if orderID == "" || paymentID == "" {
		return nil, apperrors.NewValidationError("order id and payment id are required")
	}
	if !s.validSignature(orderID, paymentID, signature) {
		return nil, apperrors.NewForbiddenError("invalid payment signature")
	}

	booking, err := s.confirm(ctx, orderID, paymentID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return booking, nil
}

// SignDirect computes the signature ConfirmDirect expects.
func SignDirect(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *PaymentConfirmationService) validSignature(orderID, paymentID, signature string) bool {
	if s.signingSecret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(SignDirect(s.signingSecret, orderID, paymentID))
	return hmac.Equal(got, want)
}

func (s *PaymentConfirmationService) confirm(ctx context.Context, reference, captureID string) (*entities.Booking, error) {
	var (
		booking *entities.Booking
		outcome confirmOutcome
	)

	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		record, err := tx.Payments().GetByGatewayRefForUpdate(ctx, reference)
		if err != nil {
			return err
		}
		booking, err = tx.Bookings().GetForUpdate(ctx, record.BookingID)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		switch record.Status {
		case entities.PaymentCompleted:
			outcome = outcomeUnchanged
			return nil

		case entities.PaymentRefunded, entities.PaymentFailed:
			// The booking was closed before the capture arrived.
			if captureID == "" || (captureID == record.CapturedPaymentID && record.RefundID != "") {
				outcome = outcomeUnchanged
				return nil
			}
			refundID, err := s.gateway.Refund(ctx, providers.RefundRequest{
				CaptureID:      captureID,
				Amount:         record.Amount,
				Currency:       record.Currency,
				IdempotencyKey: "late-refund-" + captureID,
			})
			if err != nil {
				return err
			}
			record.CapturedPaymentID = captureID
			record.RefundID = refundID
			record.Status = entities.PaymentRefunded
			record.UpdatedAt = now
			outcome = outcomeLateRefund
			return tx.Payments().Update(ctx, record)

		case entities.PaymentCreated:
			if record.Method == entities.PaymentMethodEntitlement {
				return apperrors.NewConflictError("payment was settled by an entitlement")
			}
			record.Status = entities.PaymentCompleted
			record.CapturedPaymentID = captureID
			record.UpdatedAt = now
			if err := tx.Payments().Update(ctx, record); err != nil {
				return err
			}

			booking.PaymentCompleted = true
			booking.UpdatedAt = now
			if booking.Kind == entities.BookingKindLab && booking.Status == entities.LabRequested {
				if err := booking.Transition(entities.LabConfirmed, entities.SystemActor, "payment confirmed", now); err != nil {
					return err
				}
			}
			outcome = outcomeConfirmed
			return tx.Bookings().Update(ctx, booking)

		default:
			return apperrors.NewInvariantError("unknown payment status "+string(record.Status), nil)
		}
	})
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx).With().Str("booking_id", booking.ID).Str("reference", reference).Logger()
	switch outcome {
	case outcomeConfirmed:
		logger.Info().Msg("Payment confirmed")
		s.notifications.PaymentConfirmed(ctx, booking)
	case outcomeLateRefund:
		logger.Warn().Str("capture_id", captureID).Msg("Capture arrived after booking closed, refunded")
		observability.RecordRefund(ctx, s.metrics, "late_capture")
	}
	return booking, nil
}
