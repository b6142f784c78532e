package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

const metadataBookingID = "booking_id"

// StripeGateway implements PaymentGateway and WebhookParser on Stripe.
// Links are Stripe Payment Links, orders are PaymentIntents, and every
// capture is identified by its PaymentIntent id.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	successURL    string
}

// NewStripeGateway creates a Stripe-backed gateway.
func NewStripeGateway(secretKey, webhookSecret, successURL string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		successURL:    successURL,
	}
}

// toMinorUnits converts a decimal amount to the smallest currency unit.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// CreateLink creates a one-off price and a payment link that charges it.
func (g *StripeGateway) CreateLink(ctx context.Context, req providers.ChargeRequest) (*providers.GatewayLink, error) {
	price, err := g.api.Prices.New(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Currency:   stripe.String(req.Currency),
		UnitAmount: stripe.Int64(toMinorUnits(req.Amount)),
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(req.Description),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create price: %w", err)
	}

	params := &stripe.PaymentLinkParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{Price: stripe.String(price.ID), Quantity: stripe.Int64(1)},
		},
	}
	params.AddMetadata(metadataBookingID, req.BookingID)
	if g.successURL != "" {
		params.AfterCompletion = &stripe.PaymentLinkAfterCompletionParams{
			Type: stripe.String(string(stripe.PaymentLinkAfterCompletionTypeRedirect)),
			Redirect: &stripe.PaymentLinkAfterCompletionRedirectParams{
				URL: stripe.String(g.successURL),
			},
		}
	}

	link, err := g.api.PaymentLinks.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}
	return &providers.GatewayLink{ID: link.ID, URL: link.URL}, nil
}

// CreateOrder creates a PaymentIntent the requester confirms in-app.
func (g *StripeGateway) CreateOrder(ctx context.Context, req providers.ChargeRequest) (*providers.GatewayOrder, error) {
	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(toMinorUnits(req.Amount)),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(metadataBookingID, req.BookingID)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &providers.GatewayOrder{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// FetchLinkCapture looks for a paid checkout session created from the link.
func (g *StripeGateway) FetchLinkCapture(ctx context.Context, linkID string) (string, error) {
	params := &stripe.CheckoutSessionListParams{PaymentLink: stripe.String(linkID)}
	params.Context = ctx

	iter := g.api.CheckoutSessions.List(params)
	for iter.Next() {
		session := iter.CheckoutSession()
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid && session.PaymentIntent != nil {
			return session.PaymentIntent.ID, nil
		}
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("list checkout sessions: %w", err)
	}
	return "", providers.ErrNoCapture
}

// Refund refunds the PaymentIntent identified by the capture id.
func (g *StripeGateway) Refund(ctx context.Context, req providers.RefundRequest) (string, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(req.CaptureID)}
	params.Context = ctx
	if req.Amount.IsPositive() {
		params.Amount = stripe.Int64(toMinorUnits(req.Amount))
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	refund, err := g.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("create refund: %w", err)
	}
	return refund.ID, nil
}

// CancelLink deactivates the payment link so it can no longer be paid.
func (g *StripeGateway) CancelLink(ctx context.Context, linkID string) error {
	_, err := g.api.PaymentLinks.Update(linkID, &stripe.PaymentLinkParams{
		Params: stripe.Params{Context: ctx},
		Active: stripe.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("deactivate payment link: %w", err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the events
// that settle a link or an order. Other event types come back unpaid.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*providers.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperrors.NewForbiddenError("invalid webhook signature")
	}

	out := &providers.WebhookEvent{ID: event.ID}
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, apperrors.NewValidationError("malformed checkout session payload")
		}
		if session.PaymentLink != nil {
			out.Reference = session.PaymentLink.ID
		}
		if session.PaymentIntent != nil {
			out.CaptureID = session.PaymentIntent.ID
		}
		out.Paid = session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid && out.CaptureID != ""
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, apperrors.NewValidationError("malformed payment intent payload")
		}
		out.Reference = pi.ID
		out.CaptureID = pi.ID
		out.Paid = true
	}
	return out, nil
}

var (
	_ providers.PaymentGateway = (*StripeGateway)(nil)
	_ providers.WebhookParser  = (*StripeGateway)(nil)
)
