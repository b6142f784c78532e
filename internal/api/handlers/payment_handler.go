package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// maxWebhookBody matches the largest event the gateway sends.
const maxWebhookBody = 64 << 10

// PaymentConfirmer defines the payment confirmation paths
type PaymentConfirmer interface {
	ConfirmFromWebhook(ctx context.Context, payload []byte, signature string) error
	ConfirmDirect(ctx context.Context, orderID, paymentID, signature string) (*entities.Booking, error)
}

// PaymentHandler handles gateway webhooks and client-side confirmations
type PaymentHandler struct {
	service         PaymentConfirmer
	signatureHeader string
}

// NewPaymentHandler creates a new payment handler. signatureHeader names
// the header carrying the gateway's webhook signature.
func NewPaymentHandler(service PaymentConfirmer, signatureHeader string) *PaymentHandler {
	if signatureHeader == "" {
		signatureHeader = "Stripe-Signature"
	}
	return &PaymentHandler{service: service, signatureHeader: signatureHeader}
}

// Webhook handles POST /webhooks/payments
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondWithStatus(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := h.service.ConfirmFromWebhook(r.Context(), payload, r.Header.Get(h.signatureHeader)); err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithStatus(w, http.StatusOK, "received")
}

// ConfirmDirect handles POST /api/payments/confirm
func (h *PaymentHandler) ConfirmDirect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID   string `json:"order_id"`
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	booking, err := h.service.ConfirmDirect(r.Context(), body.OrderID, body.PaymentID, body.Signature)
	if err != nil {
		respondWithError(r.Context(), w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, "payment confirmed", booking)
}
