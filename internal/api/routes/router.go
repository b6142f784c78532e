package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/zatekoja/carebook/backend/internal/api/handlers"
	"github.com/zatekoja/carebook/backend/internal/api/middleware"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	bookingHandler  *handlers.BookingHandler
	adminHandler    *handlers.AdminHandler
	paymentHandler  *handlers.PaymentHandler
	scheduleHandler *handlers.ScheduleHandler

	auth           *middleware.Authenticator
	rateLimiter    *middleware.RateLimiter
	payments       repositories.PaymentRepository
	allowedOrigins []string
	metrics        *observability.Metrics
	healthChecks   map[string]HealthCheck
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterDeps collects what the router wires together.
type RouterDeps struct {
	BookingHandler  *handlers.BookingHandler
	AdminHandler    *handlers.AdminHandler
	PaymentHandler  *handlers.PaymentHandler
	ScheduleHandler *handlers.ScheduleHandler
	Auth            *middleware.Authenticator
	RateLimiter     *middleware.RateLimiter
	Payments        repositories.PaymentRepository
	AllowedOrigins  []string
	Metrics         *observability.Metrics
	HealthChecks    map[string]HealthCheck
}

// NewRouter creates a new router
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		bookingHandler:  deps.BookingHandler,
		adminHandler:    deps.AdminHandler,
		paymentHandler:  deps.PaymentHandler,
		scheduleHandler: deps.ScheduleHandler,
		auth:            deps.Auth,
		rateLimiter:     deps.RateLimiter,
		payments:        deps.Payments,
		allowedOrigins:  deps.AllowedOrigins,
		metrics:         deps.Metrics,
		healthChecks:    deps.HealthChecks,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	authed := func(h http.HandlerFunc) http.Handler {
		return r.auth.Authenticate(h)
	}
	restricted := func(h http.HandlerFunc, roles ...entities.ActorRole) http.Handler {
		return r.auth.Authenticate(middleware.RequireRole(roles...)(h))
	}

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.mux.HandleFunc("GET /ready", r.ready)

	// Booking endpoints
	r.mux.Handle("POST /api/bookings", authed(r.bookingHandler.CreateBooking))
	r.mux.Handle("GET /api/bookings/{id}", authed(r.bookingHandler.GetBooking))
	r.mux.Handle("POST /api/bookings/{id}/cancel", authed(r.bookingHandler.CancelBooking))
	r.mux.Handle("POST /api/bookings/{id}/reschedule", authed(r.bookingHandler.RescheduleBooking))

	// Slot endpoints
	r.mux.HandleFunc("GET /api/providers/{id}/slots", r.bookingHandler.ListSlots)
	r.mux.HandleFunc("GET /api/providers/{id}/slots/check", r.bookingHandler.CheckSlot)

	// Schedule endpoints
	r.mux.Handle("POST /api/providers/{id}/schedules",
		restricted(r.scheduleHandler.RequestChange, entities.RoleProvider, entities.RoleAdmin))
	r.mux.HandleFunc("GET /api/providers/{id}/schedules/approved", r.scheduleHandler.GetApproved)

	// Payment endpoints
	r.mux.HandleFunc("POST /api/payments/confirm", r.paymentHandler.ConfirmDirect)
	r.mux.HandleFunc("POST /webhooks/payments", r.paymentHandler.Webhook)

	// Back office endpoints
	r.mux.Handle("GET /api/admin/bookings",
		restricted(r.adminHandler.ListBookings, entities.RoleAdmin, entities.RoleProvider))
	r.mux.Handle("PATCH /api/admin/bookings/{id}/status",
		restricted(r.adminHandler.UpdateStatus, entities.RoleAdmin, entities.RoleProvider))
	r.mux.Handle("POST /api/admin/bookings/{id}/outcome",
		restricted(r.adminHandler.UploadOutcome, entities.RoleAdmin, entities.RoleProvider))
	r.mux.Handle("POST /api/admin/schedules/{id}/approve", restricted(r.scheduleHandler.Approve, entities.RoleAdmin))
	r.mux.Handle("POST /api/admin/schedules/{id}/reject", restricted(r.scheduleHandler.Reject, entities.RoleAdmin))

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	if r.rateLimiter != nil {
		handler = r.rateLimiter.Middleware(handler)
	}
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	if r.payments != nil {
		handler = middleware.LoadersMiddleware(r.payments)(handler)
	}

	// CORS wraps everything so preflight never reaches auth
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

// ready pings every dependency and reports 503 if any is down.
func (r *Router) ready(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(r.healthChecks))
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	handlers.RespondWithJSON(w, status, http.StatusText(status), results)
}
