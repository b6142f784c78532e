package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zatekoja/carebook/backend/internal/application/loaders"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// BookingSettings holds the locale and policy values of the booking flow.
type BookingSettings struct {
	Location           *time.Location
	Currency           string
	CancellationCutoff time.Duration
}

// BookingServiceDeps wires the collaborators of BookingService.
type BookingServiceDeps struct {
	Store         repositories.UnitOfWork
	Catalog       providers.CatalogProvider
	Resolver      *AvailabilityResolver
	Allocator     *SlotAllocator
	Binder        *PaymentBinder
	Cancellations *CancellationService
	Artifacts     providers.ArtifactStore
	Reminders     providers.ReminderScheduler
	Notifications *NotificationService
	Metrics       *observability.Metrics
}

// BookingService handles booking creation, changes and reads
type BookingService struct {
	uow           repositories.UnitOfWork
	catalog       providers.CatalogProvider
	resolver      *AvailabilityResolver
	allocator     *SlotAllocator
	binder        *PaymentBinder
	cancellations *CancellationService
	artifacts     providers.ArtifactStore
	reminders     providers.ReminderScheduler
	notifications *NotificationService
	metrics       *observability.Metrics
	settings      BookingSettings
	now           func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(deps BookingServiceDeps, settings BookingSettings) *BookingService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	return &BookingService{
		uow:           deps.Store,
		catalog:       deps.Catalog,
		resolver:      deps.Resolver,
		allocator:     deps.Allocator,
		binder:        deps.Binder,
		cancellations: deps.Cancellations,
		artifacts:     deps.Artifacts,
		reminders:     deps.Reminders,
		notifications: deps.Notifications,
		metrics:       deps.Metrics,
		settings:      settings,
		now:           time.Now,
	}
}

// CreateBookingRequest describes a booking to create.
type CreateBookingRequest struct {
	Kind           entities.BookingKind
	RequesterID    string
	Beneficiary    entities.Beneficiary
	ProviderID     string
	Resource       entities.ResourceRef
	Date           string
	Time           entities.ClockTime
	Modality       entities.Modality
	HomeCollection bool
	Location       string
	Discount       decimal.Decimal
}

// BookingWithPayment is a booking together with its payment record.
type BookingWithPayment struct {
	*entities.Booking
	Payment *entities.PaymentRecord `json:"payment,omitempty"`
}

// Create books a slot and binds its payment in one transaction. Reminders
// and notifications follow the commit.
func (s *BookingService) Create(ctx context.Context, actor entities.Actor, req CreateBookingRequest) (*BookingWithPayment, error) {
	ctx, span := observability.StartSpan(ctx, "BookingService.Create")
	defer span.End()

	booking, category, err := s.prepare(ctx, actor, req)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	var record *entities.PaymentRecord
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if booking.Kind == entities.BookingKindAppointment {
			if err := s.resolver.Resolve(ctx, tx, SlotRequest{
				ProviderID: booking.ProviderID,
				Modality:   booking.Modality,
				Date:       booking.ScheduledDate,
				Start:      booking.ScheduledTime,
				End:        booking.ScheduledEndClock(),
			}); err != nil {
				return err
			}
		}
		if err := s.allocator.Reserve(ctx, tx, booking.SlotKey()); err != nil {
			return err
		}
		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return err
		}

		var err error
		record, err = s.binder.Bind(ctx, tx, booking, BindRequest{
			PayerID:     booking.RequesterID,
			CreatorRole: actor.Role,
			Category:    category,
		})
		return err
	})
	if err != nil {
		s.binder.CompensateLink(ctx, record)
		observability.RecordError(span, err)
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("booking_id", booking.ID).
		Str("kind", string(booking.Kind)).
		Str("payment_method", string(record.Method)).
		Msg("Booking created")
	observability.RecordBookingCreated(ctx, s.metrics, string(booking.Kind))

	s.notifications.BookingCreated(ctx, booking, record)
	s.scheduleReminders(ctx, booking)
	return &BookingWithPayment{Booking: booking, Payment: record}, nil
}

// prepare builds the booking from the catalog offering and checks
// everything that needs no transaction.
func (s *BookingService) prepare(ctx context.Context, actor entities.Actor, req CreateBookingRequest) (*entities.Booking, string, error) {
	switch actor.Role {
	case entities.RoleRequester:
		if req.RequesterID == "" {
			req.RequesterID = actor.ID
		}
		if req.RequesterID != actor.ID {
			return nil, "", apperrors.NewForbiddenError("requesters can only book for themselves")
		}
	case entities.RoleProvider:
		if req.ProviderID != actor.ID {
			return nil, "", apperrors.NewForbiddenError("providers can only book their own slots")
		}
	case entities.RoleAdmin:
	default:
		return nil, "", apperrors.NewForbiddenError("not allowed to create bookings")
	}

	ref := req.Resource.Ref()
	if strings.TrimSpace(ref) == "" {
		return nil, "", apperrors.NewValidationError("a service, test or package reference is required")
	}
	offering, err := s.offering(ctx, ref, req.Location)
	if err != nil {
		return nil, "", err
	}

	surcharge := decimal.Zero
	if req.HomeCollection {
		if !offering.HomeCollectionAvailable {
			return nil, "", apperrors.NewValidationError("home collection is not available for this service")
		}
		surcharge = offering.HomeCollectionSurcharge
	}
	currency := offering.Currency
	if currency == "" {
		currency = s.settings.Currency
	}
	amounts, err := entities.NewAmounts(offering.Price, surcharge, req.Discount, strings.ToLower(currency))
	if err != nil {
		return nil, "", err
	}

	duration := s.durationOf(offering)

	booking := &entities.Booking{
		ID:              uuid.New().String(),
		Kind:            req.Kind,
		RequesterID:     req.RequesterID,
		Beneficiary:     req.Beneficiary,
		ProviderID:      req.ProviderID,
		Resource:        req.Resource,
		DurationMinutes: duration,
		Modality:        req.Modality,
		HomeCollection:  req.HomeCollection,
		Location:        req.Location,
		Amounts:         amounts,
	}
	if booking.Beneficiary.ID == "" {
		booking.Beneficiary.ID = req.RequesterID
	}
	if err := booking.PlaceAt(req.Date, req.Time, s.settings.Location); err != nil {
		return nil, "", err
	}
	if err := booking.Validate(); err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	if !booking.StartsAt.After(now) {
		return nil, "", apperrors.NewValidationError("cannot book a slot in the past")
	}
	if err := s.checkPlacement(booking.Kind, booking.ScheduledTime); err != nil {
		return nil, "", err
	}

	booking.Open(actor, "booking created", now)
	return booking, offering.Category, nil
}

// Get returns a booking the actor may see.
func (s *BookingService) Get(ctx context.Context, id string, actor entities.Actor) (*BookingWithPayment, error) {
	booking, err := s.uow.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeActor(booking, actor); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("booking with id %s not found", id))
	}

	record, err := s.uow.Payments().GetByBookingID(ctx, id)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}
	return &BookingWithPayment{Booking: booking, Payment: record}, nil
}

// List returns bookings matching filter with their payment records.
func (s *BookingService) List(ctx context.Context, filter repositories.BookingFilter) ([]*BookingWithPayment, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	bookings, err := s.uow.Bookings().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(s.uow.Payments())
	}

	thunks := make([]func() (*entities.PaymentRecord, error), len(bookings))
	for i, b := range bookings {
		thunks[i] = l.PaymentLoader.Load(ctx, b.ID)
	}

	out := make([]*BookingWithPayment, len(bookings))
	for i, b := range bookings {
		record, err := thunks[i]()
		if err != nil {
			return nil, fmt.Errorf("failed to load payment for booking %s: %w", b.ID, err)
		}
		out[i] = &BookingWithPayment{Booking: b, Payment: record}
	}
	return out, nil
}

// Reschedule moves an open booking to a new slot.
func (s *BookingService) Reschedule(ctx context.Context, id string, actor entities.Actor, date string, clock entities.ClockTime) (*entities.Booking, error) {
	ctx, span := observability.StartSpan(ctx, "BookingService.Reschedule")
	defer span.End()

	var booking *entities.Booking
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		var err error
		booking, err = tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		if err := authorizeActor(booking, actor); err != nil {
			return err
		}
		if booking.IsTerminal() {
			return apperrors.NewConflictError(fmt.Sprintf("booking is %s and can no longer change", booking.Status))
		}
		if err := checkCutoff(booking, actor, now, s.settings.CancellationCutoff); err != nil {
			return err
		}
		if booking.ScheduledDate == date && booking.ScheduledTime == clock {
			return apperrors.NewValidationError("booking is already at that slot")
		}
		if err := s.checkPlacement(booking.Kind, clock); err != nil {
			return err
		}

		target, err := entities.SlotInstant(date, clock, s.settings.Location)
		if err != nil {
			return err
		}
		if !target.After(now) {
			return apperrors.NewValidationError("cannot move a booking into the past")
		}

		if booking.Kind == entities.BookingKindAppointment {
			if err := s.resolver.Resolve(ctx, tx, SlotRequest{
				ProviderID:       booking.ProviderID,
				Modality:         booking.Modality,
				Date:             date,
				Start:            clock,
				End:              clock.Add(booking.DurationMinutes),
				ExcludeBookingID: booking.ID,
			}); err != nil {
				return err
			}
		}

		oldKey := booking.SlotKey()
		note := fmt.Sprintf("rescheduled from %s %s", booking.ScheduledDate, booking.ScheduledTime)
		if err := booking.PlaceAt(date, clock, s.settings.Location); err != nil {
			return err
		}
		if err := s.allocator.Reserve(ctx, tx, booking.SlotKey()); err != nil {
			return err
		}
		if err := s.allocator.Release(ctx, tx, oldKey); err != nil {
			return err
		}
		booking.Annotate(actor, note, now)
		return tx.Bookings().Update(ctx, booking)
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	logger.Info().Str("booking_id", booking.ID).Str("date", date).Str("time", clock.String()).Msg("Booking rescheduled")

	if err := s.reminders.Cancel(ctx, booking.ID); err != nil {
		logger.Warn().Err(err).Str("booking_id", booking.ID).Msg("Failed to cancel old reminders")
	}
	s.scheduleReminders(ctx, booking)
	s.notifications.Rescheduled(ctx, booking)
	return booking, nil
}

// Cancel cancels a booking on behalf of actor.
func (s *BookingService) Cancel(ctx context.Context, id string, actor entities.Actor, reason string) (*entities.Booking, error) {
	return s.cancellations.Cancel(ctx, id, actor, reason)
}

// UpdateStatus moves a booking along its lifecycle. Statuses that release
// capacity go through the cancellation cascade so payments are unwound.
func (s *BookingService) UpdateStatus(ctx context.Context, id string, actor entities.Actor, status entities.BookingStatus, note string) (*entities.Booking, error) {
	if actor.Role == entities.RoleRequester {
		return nil, apperrors.NewForbiddenError("requesters cannot change booking status")
	}

	current, err := s.uow.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Lifecycle().ReleasesCapacity(status) {
		return s.cancellations.CancelTo(ctx, id, actor, note, status)
	}

	var booking *entities.Booking
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		var err error
		booking, err = tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeActor(booking, actor); err != nil {
			return err
		}
		if err := booking.Transition(status, actor, note, s.now().UTC()); err != nil {
			return err
		}
		return tx.Bookings().Update(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	if booking.IsTerminal() {
		if err := s.reminders.Cancel(ctx, booking.ID); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("booking_id", booking.ID).Msg("Failed to cancel reminders")
		}
	}
	if booking.Status == entities.StatusNoShow {
		s.notifications.NoShow(ctx, booking)
	} else {
		s.notifications.StatusChanged(ctx, booking)
	}
	return booking, nil
}

// UploadOutcomeRequest carries an outcome document for a booking.
type UploadOutcomeRequest struct {
	Kind     entities.OutcomeKind
	FileName string
	Content  io.Reader
}

// UploadOutcome stores the document and records it against the booking.
// A lab booking waiting on its test moves to Report_Ready.
func (s *BookingService) UploadOutcome(ctx context.Context, id string, actor entities.Actor, req UploadOutcomeRequest) (*entities.OutcomeArtifact, error) {
	ctx, span := observability.StartSpan(ctx, "BookingService.UploadOutcome")
	defer span.End()

	if actor.Role == entities.RoleRequester {
		return nil, apperrors.NewForbiddenError("requesters cannot upload outcomes")
	}
	if req.Content == nil || strings.TrimSpace(req.FileName) == "" {
		return nil, apperrors.NewValidationError("a file is required")
	}

	booking, err := s.uow.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeActor(booking, actor); err != nil {
		return nil, err
	}
	if booking.IsCancelled() {
		return nil, apperrors.NewConflictError("cannot attach an outcome to a cancelled booking")
	}

	kind := req.Kind
	if kind == "" {
		kind = entities.OutcomeClinicalRecord
		if booking.Kind == entities.BookingKindLab {
			kind = entities.OutcomeLabReport
		}
	}

	stored, err := s.artifacts.Upload(ctx, booking.ID, req.FileName, req.Content)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	artifact := &entities.OutcomeArtifact{
		ID:         uuid.New().String(),
		BookingID:  booking.ID,
		Kind:       kind,
		FileName:   req.FileName,
		URL:        stored.URL,
		StorageID:  stored.StorageID,
		UploadedBy: actor.ID,
	}

	var advanced bool
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		locked, err := tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		artifact.UploadedAt = now
		if err := tx.Outcomes().Create(ctx, artifact); err != nil {
			return err
		}

		if locked.Kind == entities.BookingKindLab && locked.Status == entities.LabTestScheduled {
			if err := locked.Transition(entities.LabReportReady, actor, "report uploaded", now); err != nil {
				return err
			}
			if err := tx.Bookings().Update(ctx, locked); err != nil {
				return err
			}
			booking = locked
			advanced = true
		}
		return nil
	})
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("booking_id", id).Str("storage_id", stored.StorageID).
			Msg("Outcome uploaded but not recorded")
		return nil, err
	}

	if advanced {
		s.notifications.StatusChanged(ctx, booking)
	}
	return artifact, nil
}

// SlotCheck asks whether a slot can currently be booked. ServiceRef, when
// set, sizes the appointment by the offering's duration.
type SlotCheck struct {
	ProviderID string
	Date       string
	Time       entities.ClockTime
	Kind       entities.BookingKind
	Modality   entities.Modality
	ServiceRef string
	Location   string
}

// CheckSlot runs the placement, capacity and, for appointments, availability
// checks against committed data. Create repeats them under lock.
func (s *BookingService) CheckSlot(ctx context.Context, q SlotCheck) error {
	start, err := entities.SlotInstant(q.Date, q.Time, s.settings.Location)
	if err != nil {
		return err
	}
	if !start.After(s.now()) {
		return apperrors.NewValidationError("cannot book a slot in the past")
	}
	if err := s.checkPlacement(q.Kind, q.Time); err != nil {
		return err
	}
	if err := s.allocator.CheckCapacity(ctx, q.ProviderID, q.Date, q.Time); err != nil {
		return err
	}
	if q.Kind == entities.BookingKindLab {
		return nil
	}
	if !q.Modality.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("invalid modality %q", q.Modality))
	}

	duration := s.allocator.Config().SlotMinutes
	if q.ServiceRef != "" {
		offering, err := s.offering(ctx, q.ServiceRef, q.Location)
		if err != nil {
			return err
		}
		duration = s.durationOf(offering)
	}
	return s.resolver.Resolve(ctx, s.uow, SlotRequest{
		ProviderID: q.ProviderID,
		Modality:   q.Modality,
		Date:       q.Date,
		Start:      q.Time,
		End:        q.Time.Add(duration),
	})
}

// checkPlacement applies the operating window and slot grid to lab
// bookings. Appointments are bounded by the provider's approved schedule.
func (s *BookingService) checkPlacement(kind entities.BookingKind, clock entities.ClockTime) error {
	if kind != entities.BookingKindLab {
		return nil
	}
	return s.allocator.CheckGrid(clock)
}

func (s *BookingService) offering(ctx context.Context, ref, location string) (*entities.Offering, error) {
	offering, err := s.catalog.GetOffering(ctx, ref, location)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("service %s is not offered", ref))
		}
		return nil, err
	}
	if !offering.Offered {
		return nil, apperrors.NewValidationError(fmt.Sprintf("service %s is not offered at this location", ref))
	}
	return offering, nil
}

func (s *BookingService) durationOf(offering *entities.Offering) int {
	if offering.DurationMinutes <= 0 {
		return s.allocator.Config().SlotMinutes
	}
	return offering.DurationMinutes
}

// ListSlots returns the capacity grid of the provider for date.
func (s *BookingService) ListSlots(ctx context.Context, providerID, date string) ([]entities.SlotAvailability, error) {
	if providerID == "" {
		return nil, apperrors.NewValidationError("provider id is required")
	}
	if _, err := entities.ParseDate(date, s.settings.Location); err != nil {
		return nil, err
	}
	return s.allocator.EnumerateSlots(ctx, providerID, date)
}

func (s *BookingService) scheduleReminders(ctx context.Context, booking *entities.Booking) {
	if err := s.reminders.Schedule(ctx, booking); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("booking_id", booking.ID).Msg("Failed to schedule reminders")
	}
}
