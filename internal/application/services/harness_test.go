package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/adapters/cache"
	"github.com/zatekoja/carebook/backend/internal/adapters/memory"
	"github.com/zatekoja/carebook/backend/internal/adapters/providers/catalog"
	"github.com/zatekoja/carebook/backend/internal/adapters/providers/payments"
	"github.com/zatekoja/carebook/backend/internal/adapters/storage"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/pkg/retry"
)

const (
	testProvider      = "prov-1"
	testWebhookSecret = "whsec_test"
	testSigningSecret = "sign_test"
)

var (
	requester = entities.Actor{ID: "user-1", Role: entities.RoleRequester}
	provider  = entities.Actor{ID: testProvider, Role: entities.RoleProvider}
	admin     = entities.Actor{ID: "admin-1", Role: entities.RoleAdmin}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*entities.BookingEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event *entities.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) notifications(kind entities.NotificationType) []entities.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []entities.Notification
	for _, e := range p.events {
		if e.Notification != nil && e.Notification.Type == kind {
			out = append(out, *e.Notification)
		}
	}
	return out
}

type recordingReminders struct {
	mu        sync.Mutex
	scheduled []string
	cancelled []string
}

func (r *recordingReminders) Schedule(ctx context.Context, b *entities.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, b.ID)
	return nil
}

func (r *recordingReminders) Cancel(ctx context.Context, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, bookingID)
	return nil
}

// harness wires every service against the memory store and mock gateway
// with a controllable clock.
type harness struct {
	t         *testing.T
	clock     time.Time
	store     *memory.Store
	gateway   *payments.MockGateway
	catalog   *catalog.StaticCatalog
	publisher *recordingPublisher
	reminders *recordingReminders
	artifacts *storage.MemoryStore

	allocator      *SlotAllocator
	bookings       *BookingService
	cancellations  *CancellationService
	confirmations  *PaymentConfirmationService
	reconciliation *ReconciliationService
	schedules      *ScheduleService
}

// Sunday 2024-06-09 08:00 UTC; the test slots are on Monday 2024-06-10.
var harnessStart = time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		clock:     harnessStart,
		store:     memory.NewStore(),
		gateway:   payments.NewMockGateway(testWebhookSecret),
		publisher: &recordingPublisher{},
		reminders: &recordingReminders{},
		artifacts: storage.NewMemoryStore(),
		catalog: catalog.NewStaticCatalog(nil,
			entities.Offering{
				ServiceRef: "svc-consult", Offered: true, Category: "consultation",
				Price: decimal.NewFromInt(500), Currency: "inr", DurationMinutes: 30,
			},
			entities.Offering{
				ServiceRef: "test-cbc", Offered: true, Category: "lab",
				Price: decimal.NewFromInt(300), Currency: "inr", DurationMinutes: 30,
				HomeCollectionAvailable: true, HomeCollectionSurcharge: decimal.NewFromInt(50),
			},
			entities.Offering{ServiceRef: "svc-closed", Offered: false, Price: decimal.NewFromInt(100)},
		),
	}
	now := func() time.Time { return h.clock }

	notifications := NewNotificationService(h.publisher)
	notifications.dispatch = func(f func()) { f() }
	notifications.retry = retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	notifications.now = now

	h.allocator = NewSlotAllocator(DefaultSlotConfig(), h.store, nil)
	binder := NewPaymentBinder(h.gateway)
	binder.now = now

	h.cancellations = NewCancellationService(h.store, h.gateway, h.allocator, h.reminders, notifications, nil, time.Hour)
	h.cancellations.now = now

	h.bookings = NewBookingService(BookingServiceDeps{
		Store:         h.store,
		Catalog:       h.catalog,
		Resolver:      NewAvailabilityResolver(time.UTC),
		Allocator:     h.allocator,
		Binder:        binder,
		Cancellations: h.cancellations,
		Artifacts:     h.artifacts,
		Reminders:     h.reminders,
		Notifications: notifications,
	}, BookingSettings{Location: time.UTC, Currency: "inr", CancellationCutoff: time.Hour})
	h.bookings.now = now

	h.confirmations = NewPaymentConfirmationService(h.store, h.gateway, h.gateway,
		cache.NewLocalAdapter(100, time.Hour), notifications, nil,
		PaymentConfirmationConfig{SigningSecret: testSigningSecret, DedupeTTL: time.Hour})
	h.confirmations.now = now

	h.reconciliation = NewReconciliationService(h.store, h.gateway, h.allocator, h.reminders, notifications, nil, 15*time.Minute)
	h.reconciliation.now = now

	h.schedules = NewScheduleService(h.store)
	h.schedules.now = now

	return h
}

// approveMondayMorning gives the test provider an approved in-person window
// on Mondays 09:00-12:00.
func (h *harness) approveMondayMorning() {
	h.t.Helper()
	window := &entities.ScheduleWindow{
		ID:         "win-1",
		ProviderID: testProvider,
		Modality:   entities.ModalityInPerson,
		Days: []entities.ScheduleDay{{
			Day:    entities.Monday,
			Ranges: []entities.TimeRange{{Start: entities.MustClock("09:00"), End: entities.MustClock("12:00")}},
		}},
		Status:    entities.ScheduleApproved,
		CreatedAt: h.clock,
		UpdatedAt: h.clock,
	}
	require.NoError(h.t, h.store.Schedules().Create(context.Background(), window))
}

func appointmentRequest(clock string) CreateBookingRequest {
	return CreateBookingRequest{
		Kind:        entities.BookingKindAppointment,
		RequesterID: requester.ID,
		Beneficiary: entities.Beneficiary{Name: "Asha", Phone: "+919800000000"},
		ProviderID:  testProvider,
		Resource:    entities.ResourceRef{ServiceID: "svc-consult"},
		Date:        "2024-06-10",
		Time:        entities.MustClock(clock),
		Modality:    entities.ModalityInPerson,
	}
}

func labRequest(requesterID, clock string) CreateBookingRequest {
	return CreateBookingRequest{
		Kind:        entities.BookingKindLab,
		RequesterID: requesterID,
		Beneficiary: entities.Beneficiary{Name: "Ravi"},
		ProviderID:  "lab-1",
		Resource:    entities.ResourceRef{TestID: "test-cbc"},
		Date:        "2024-06-10",
		Time:        entities.MustClock(clock),
	}
}

func (h *harness) payment(bookingID string) *entities.PaymentRecord {
	h.t.Helper()
	record, err := h.store.Payments().GetByBookingID(context.Background(), bookingID)
	require.NoError(h.t, err)
	return record
}

func (h *harness) booking(id string) *entities.Booking {
	h.t.Helper()
	b, err := h.store.Bookings().GetByID(context.Background(), id)
	require.NoError(h.t, err)
	return b
}

func (h *harness) slotCount(providerID, clock string) int {
	h.t.Helper()
	counts, err := h.store.SlotCounters().Counts(context.Background(), providerID, "2024-06-10")
	require.NoError(h.t, err)
	return counts[entities.MustClock(clock)]
}

// confirmDirect pays a requester order as the client app would report it.
func (h *harness) confirmDirect(bookingID, captureID string) {
	h.t.Helper()
	orderID := h.payment(bookingID).GatewayOrderID
	_, err := h.confirmations.ConfirmDirect(context.Background(), orderID, captureID, SignDirect(testSigningSecret, orderID, captureID))
	require.NoError(h.t, err)
}

// requireHistoryConsistent checks that the history is non-empty and ends
// with the current status.
func requireHistoryConsistent(t *testing.T, b *entities.Booking) {
	t.Helper()
	latest, ok := b.LatestEntry()
	require.True(t, ok)
	require.Equal(t, b.Status, latest.Status)
}
