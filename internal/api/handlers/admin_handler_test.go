package handlers_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/api/handlers"
	"github.com/zatekoja/carebook/backend/internal/application/services"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
)

func TestAdminHandler_ListBookings(t *testing.T) {
	t.Run("passes filters", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAdminHandler(mockService)
		from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

		mockService.On("List", mock.Anything, mock.MatchedBy(func(f repositories.BookingFilter) bool {
			return f.Kind == entities.BookingKindLab &&
				f.Status == entities.LabRequested &&
				f.From != nil && f.From.Equal(from) &&
				f.To == nil &&
				f.Limit == 20 && f.Offset == 40
		})).Return([]*services.BookingWithPayment{{Booking: &entities.Booking{ID: "b-1"}}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/bookings?kind=lab&status=Requested&from=2024-06-01T00:00:00Z&limit=20&offset=40", nil)
		w := httptest.NewRecorder()

		handler.ListBookings(w, as(req, admin))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(decodeEnvelope(t, w).Data), `"count":1`)
		mockService.AssertExpectations(t)
	})

	t.Run("providers see their own bookings", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAdminHandler(mockService)
		mockService.On("List", mock.Anything, mock.MatchedBy(func(f repositories.BookingFilter) bool {
			return f.ProviderID == provider.ID
		})).Return([]*services.BookingWithPayment{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/bookings?provider_id=prov-9", nil)
		w := httptest.NewRecorder()

		handler.ListBookings(w, as(req, provider))

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		handler := handlers.NewAdminHandler(new(MockBookingService))
		for _, query := range []string{"from=yesterday", "limit=-1", "offset=abc"} {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/bookings?"+query, nil)
			w := httptest.NewRecorder()
			handler.ListBookings(w, as(req, admin))
			assert.Equal(t, http.StatusBadRequest, w.Code, query)
		}
	})
}

func TestAdminHandler_UpdateStatus(t *testing.T) {
	mockService := new(MockBookingService)
	handler := handlers.NewAdminHandler(mockService)
	mockService.On("UpdateStatus", mock.Anything, "b-1", admin, entities.LabSamplePickedUp, "collected at home").
		Return(&entities.Booking{ID: "b-1", Status: entities.LabSamplePickedUp}, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/bookings/b-1/status",
		bytes.NewBufferString(`{"status":"Sample_Picked_Up","note":"collected at home"}`))
	req.SetPathValue("id", "b-1")
	w := httptest.NewRecorder()

	handler.UpdateStatus(w, as(req, admin))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestAdminHandler_UploadOutcome(t *testing.T) {
	t.Run("uploads multipart file", func(t *testing.T) {
		mockService := new(MockBookingService)
		handler := handlers.NewAdminHandler(mockService)

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("kind", "lab_report"))
		part, err := mw.CreateFormFile("file", "cbc.pdf")
		require.NoError(t, err)
		_, _ = part.Write([]byte("%PDF-1.4"))
		require.NoError(t, mw.Close())

		mockService.On("UploadOutcome", mock.Anything, "b-1", admin, mock.MatchedBy(func(r services.UploadOutcomeRequest) bool {
			content, _ := io.ReadAll(r.Content)
			return r.Kind == entities.OutcomeLabReport && r.FileName == "cbc.pdf" && string(content) == "%PDF-1.4"
		})).Return(&entities.OutcomeArtifact{ID: "art-1", BookingID: "b-1"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/admin/bookings/b-1/outcome", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.SetPathValue("id", "b-1")
		w := httptest.NewRecorder()

		handler.UploadOutcome(w, as(req, admin))

		assert.Equal(t, http.StatusCreated, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("requires a file", func(t *testing.T) {
		handler := handlers.NewAdminHandler(new(MockBookingService))

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("kind", "lab_report"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/admin/bookings/b-1/outcome", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()

		handler.UploadOutcome(w, as(req, admin))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
