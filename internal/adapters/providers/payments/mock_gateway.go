package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// MockGateway is an in-process gateway for local development. Links are
// never paid unless MarkLinkPaid is called; refunds succeed unless
// FailRefunds is set. Refunds and cancellations are remembered.
type MockGateway struct {
	webhookSecret string

	mu        sync.Mutex
	captures  map[string]string // link id -> capture id
	refunds   map[string]string // idempotency key -> refund id
	cancelled map[string]bool
	refundErr error
}

// NewMockGateway creates a mock gateway. Webhook payloads must carry a hex
// HMAC-SHA256 of the body keyed with webhookSecret.
func NewMockGateway(webhookSecret string) *MockGateway {
	return &MockGateway{
		webhookSecret: webhookSecret,
		captures:      make(map[string]string),
		refunds:       make(map[string]string),
		cancelled:     make(map[string]bool),
	}
}

func (m *MockGateway) CreateLink(ctx context.Context, req providers.ChargeRequest) (*providers.GatewayLink, error) {
	id := "plink_" + uuid.NewString()
	return &providers.GatewayLink{ID: id, URL: fmt.Sprintf("https://pay.example.com/%s", id)}, nil
}

func (m *MockGateway) CreateOrder(ctx context.Context, req providers.ChargeRequest) (*providers.GatewayOrder, error) {
	id := "order_" + uuid.NewString()
	return &providers.GatewayOrder{ID: id, ClientSecret: id + "_secret"}, nil
}

// MarkLinkPaid records a capture against a link, as if the payer completed checkout.
func (m *MockGateway) MarkLinkPaid(linkID, captureID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures[linkID] = captureID
}

func (m *MockGateway) FetchLinkCapture(ctx context.Context, linkID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.captures[linkID]; ok {
		return id, nil
	}
	return "", providers.ErrNoCapture
}

// FailRefunds makes every later Refund return err. A nil err restores success.
func (m *MockGateway) FailRefunds(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refundErr = err
}

func (m *MockGateway) Refund(ctx context.Context, req providers.RefundRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refundErr != nil {
		return "", m.refundErr
	}
	if id, ok := m.refunds[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return id, nil
	}
	id := "re_" + uuid.NewString()
	if req.IdempotencyKey != "" {
		m.refunds[req.IdempotencyKey] = id
	}
	return id, nil
}

// RefundCount returns how many distinct refunds were issued.
func (m *MockGateway) RefundCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refunds)
}

func (m *MockGateway) CancelLink(ctx context.Context, linkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[linkID] = true
	return nil
}

// LinkCancelled reports whether CancelLink was called for linkID.
func (m *MockGateway) LinkCancelled(linkID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled[linkID]
}

type mockWebhookPayload struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	CaptureID string `json:"capture_id"`
	Paid      bool   `json:"paid"`
}

// SignMockWebhook returns the signature header value for payload.
func SignMockWebhook(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *MockGateway) ParseWebhook(payload []byte, signature string) (*providers.WebhookEvent, error) {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return nil, apperrors.NewForbiddenError("invalid webhook signature")
	}
	want, _ := hex.DecodeString(SignMockWebhook(m.webhookSecret, payload))
	if !hmac.Equal(got, want) {
		return nil, apperrors.NewForbiddenError("invalid webhook signature")
	}

	var body mockWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, apperrors.NewValidationError("malformed webhook payload")
	}
	return &providers.WebhookEvent{
		ID:        body.ID,
		Reference: body.Reference,
		CaptureID: body.CaptureID,
		Paid:      body.Paid,
	}, nil
}

var (
	_ providers.PaymentGateway = (*MockGateway)(nil)
	_ providers.WebhookParser  = (*MockGateway)(nil)
)
