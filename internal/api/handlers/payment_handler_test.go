package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/carebook/backend/internal/api/handlers"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

type MockPaymentConfirmer struct {
	mock.Mock
}

func (m *MockPaymentConfirmer) ConfirmFromWebhook(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(ctx, payload, signature)
	return args.Error(0)
}

func (m *MockPaymentConfirmer) ConfirmDirect(ctx context.Context, orderID, paymentID, signature string) (*entities.Booking, error) {
	args := m.Called(ctx, orderID, paymentID, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Booking), args.Error(1)
}

func TestPaymentHandler_Webhook(t *testing.T) {
	payload := []byte(`{"id":"evt_1","reference":"plink_1","capture_id":"pi_1","paid":true}`)

	t.Run("acknowledges delivery", func(t *testing.T) {
		mockService := new(MockPaymentConfirmer)
		handler := handlers.NewPaymentHandler(mockService, "X-Signature")
		mockService.On("ConfirmFromWebhook", mock.Anything, payload, "abc123").Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(payload))
		req.Header.Set("X-Signature", "abc123")
		w := httptest.NewRecorder()

		handler.Webhook(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("bad signature", func(t *testing.T) {
		mockService := new(MockPaymentConfirmer)
		handler := handlers.NewPaymentHandler(mockService, "")
		mockService.On("ConfirmFromWebhook", mock.Anything, payload, "").
			Return(apperrors.NewForbiddenError("invalid webhook signature"))

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(payload))
		w := httptest.NewRecorder()

		handler.Webhook(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestPaymentHandler_ConfirmDirect(t *testing.T) {
	mockService := new(MockPaymentConfirmer)
	handler := handlers.NewPaymentHandler(mockService, "")
	mockService.On("ConfirmDirect", mock.Anything, "pi_order", "ch_1", "deadbeef").
		Return(&entities.Booking{ID: "b-1", PaymentCompleted: true}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/confirm",
		bytes.NewBufferString(`{"order_id":"pi_order","payment_id":"ch_1","signature":"deadbeef"}`))
	w := httptest.NewRecorder()

	handler.ConfirmDirect(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payment confirmed", decodeEnvelope(t, w).Message)
	mockService.AssertExpectations(t)
}
