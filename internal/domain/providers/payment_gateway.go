package providers

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoCapture is returned by FetchLinkCapture when nothing was paid on a link yet.
var ErrNoCapture = errors.New("no captured payment for link")

// ChargeRequest describes the amount a gateway link or order collects.
type ChargeRequest struct {
	BookingID   string
	Description string
	Amount      decimal.Decimal
	Currency    string
	PayerID     string
}

// GatewayLink is a hosted payment page created for a booking.
type GatewayLink struct {
	ID  string
	URL string
}

// GatewayOrder is an in-app payment the requester completes.
type GatewayOrder struct {
	ID           string
	ClientSecret string
}

// RefundRequest refunds a capture. IdempotencyKey makes retries safe.
type RefundRequest struct {
	CaptureID      string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// PaymentGateway is the external payment processor.
type PaymentGateway interface {
	CreateLink(ctx context.Context, req ChargeRequest) (*GatewayLink, error)
	CreateOrder(ctx context.Context, req ChargeRequest) (*GatewayOrder, error)

	// FetchLinkCapture returns the capture id paid through the link, or ErrNoCapture.
	FetchLinkCapture(ctx context.Context, linkID string) (string, error)

	// Refund returns the gateway refund id.
	Refund(ctx context.Context, req RefundRequest) (string, error)

	CancelLink(ctx context.Context, linkID string) error
}

// WebhookEvent is a verified payment notification from the gateway.
type WebhookEvent struct {
	ID string
	// Reference is the link id or order id the payment was made against.
	Reference string
	CaptureID string
	Paid      bool
}

// WebhookParser verifies and decodes gateway webhook deliveries.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
