package handlers_test

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/carebook/backend/internal/api/middleware"
	"github.com/zatekoja/carebook/backend/internal/application/services"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
)

var (
	requester = entities.Actor{ID: "user-1", Role: entities.RoleRequester}
	admin     = entities.Actor{ID: "admin-1", Role: entities.RoleAdmin}
	provider  = entities.Actor{ID: "prov-1", Role: entities.RoleProvider}
)

func as(req *http.Request, actor entities.Actor) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

// MockBookingService implements both booking handler interfaces
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) Create(ctx context.Context, actor entities.Actor, req services.CreateBookingRequest) (*services.BookingWithPayment, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BookingWithPayment), args.Error(1)
}

func (m *MockBookingService) Get(ctx context.Context, id string, actor entities.Actor) (*services.BookingWithPayment, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.BookingWithPayment), args.Error(1)
}

func (m *MockBookingService) Reschedule(ctx context.Context, id string, actor entities.Actor, date string, clock entities.ClockTime) (*entities.Booking, error) {
	args := m.Called(ctx, id, actor, date, clock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Booking), args.Error(1)
}

func (m *MockBookingService) Cancel(ctx context.Context, id string, actor entities.Actor, reason string) (*entities.Booking, error) {
	args := m.Called(ctx, id, actor, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Booking), args.Error(1)
}

func (m *MockBookingService) CheckSlot(ctx context.Context, q services.SlotCheck) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockBookingService) ListSlots(ctx context.Context, providerID, date string) ([]entities.SlotAvailability, error) {
	args := m.Called(ctx, providerID, date)
	return args.Get(0).([]entities.SlotAvailability), args.Error(1)
}

func (m *MockBookingService) List(ctx context.Context, filter repositories.BookingFilter) ([]*services.BookingWithPayment, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*services.BookingWithPayment), args.Error(1)
}

func (m *MockBookingService) UpdateStatus(ctx context.Context, id string, actor entities.Actor, status entities.BookingStatus, note string) (*entities.Booking, error) {
	args := m.Called(ctx, id, actor, status, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Booking), args.Error(1)
}

func (m *MockBookingService) UploadOutcome(ctx context.Context, id string, actor entities.Actor, req services.UploadOutcomeRequest) (*entities.OutcomeArtifact, error) {
	args := m.Called(ctx, id, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.OutcomeArtifact), args.Error(1)
}
