package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// DateLayout is the wire and storage format of scheduled dates.
const DateLayout = "2006-01-02"

// BookingKind distinguishes provider appointments from lab bookings.
type BookingKind string

const (
	BookingKindAppointment BookingKind = "appointment"
	BookingKindLab         BookingKind = "lab"
)

// ActorRole identifies who performed an action on a booking.
type ActorRole string

const (
	RoleRequester ActorRole = "requester"
	RoleProvider  ActorRole = "provider"
	RoleAdmin     ActorRole = "admin"
	RoleSystem    ActorRole = "system"
)

// Actor is the identity recorded against status changes.
type Actor struct {
	ID   string    `json:"id"`
	Role ActorRole `json:"role"`
}

// SystemActor is used by reconciliation sweeps.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// IsElevated reports whether the actor may override self-service rules.
func (a Actor) IsElevated() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// StatusEntry is one append-only record in a booking's status history.
type StatusEntry struct {
	Status BookingStatus `json:"status"`
	At     time.Time     `json:"at"`
	Note   string        `json:"note,omitempty"`
	Actor  Actor         `json:"actor"`
}

// Beneficiary is the person the booking is for. It may differ from the requester.
type Beneficiary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// ResourceRef points at the booked service, test or package.
type ResourceRef struct {
	ServiceID string `json:"service_id,omitempty"`
	TestID    string `json:"test_id,omitempty"`
	PackageID string `json:"package_id,omitempty"`
}

// Ref returns whichever reference is set.
func (r ResourceRef) Ref() string {
	switch {
	case r.ServiceID != "":
		return r.ServiceID
	case r.TestID != "":
		return r.TestID
	default:
		return r.PackageID
	}
}

// Amounts holds the monetary breakdown of a booking.
type Amounts struct {
	Base      decimal.Decimal `json:"base"`
	Surcharge decimal.Decimal `json:"surcharge"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
}

// NewAmounts computes total = base + surcharge - discount and rejects negative totals.
func NewAmounts(base, surcharge, discount decimal.Decimal, currency string) (Amounts, error) {
	a := Amounts{
		Base:      base,
		Surcharge: surcharge,
		Discount:  discount,
		Total:     base.Add(surcharge).Sub(discount),
		Currency:  currency,
	}
	if err := a.Validate(); err != nil {
		return Amounts{}, err
	}
	return a, nil
}

// Validate checks the total against its components.
func (a Amounts) Validate() error {
	if a.Base.IsNegative() || a.Surcharge.IsNegative() || a.Discount.IsNegative() {
		return apperrors.NewValidationError("amounts must not be negative")
	}
	if !a.Total.Equal(a.Base.Add(a.Surcharge).Sub(a.Discount)) {
		return apperrors.NewValidationError("total must equal base + surcharge - discount")
	}
	if a.Total.IsNegative() {
		return apperrors.NewValidationError("discount exceeds booking amount")
	}
	return nil
}

// Booking is one reservation of a provider's slot.
type Booking struct {
	ID               string        `json:"id"`
	Kind             BookingKind   `json:"kind"`
	RequesterID      string        `json:"requester_id"`
	Beneficiary      Beneficiary   `json:"beneficiary"`
	ProviderID       string        `json:"provider_id"`
	Resource         ResourceRef   `json:"resource"`
	ScheduledDate    string        `json:"scheduled_date"`
	ScheduledTime    ClockTime     `json:"scheduled_time"`
	DurationMinutes  int           `json:"duration_minutes"`
	StartsAt         time.Time     `json:"starts_at"`
	EndsAt           time.Time     `json:"ends_at"`
	Modality         Modality      `json:"modality,omitempty"`
	HomeCollection   bool          `json:"home_collection"`
	Location         string        `json:"location,omitempty"`
	Amounts          Amounts       `json:"amounts"`
	Status           BookingStatus `json:"status"`
	StatusHistory    []StatusEntry `json:"status_history"`
	PaymentCompleted bool          `json:"payment_completed"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ParseDate parses a scheduled date in DateLayout.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return d, nil
}

// SlotInstant returns the absolute time of clock on date in loc.
func SlotInstant(date string, clock ClockTime, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), int(clock)/60, int(clock)%60, 0, 0, loc), nil
}

// PlaceAt sets the scheduled date/time and derives StartsAt and EndsAt.
func (b *Booking) PlaceAt(date string, clock ClockTime, loc *time.Location) error {
	start, err := SlotInstant(date, clock, loc)
	if err != nil {
		return err
	}
	b.ScheduledDate = date
	b.ScheduledTime = clock
	b.StartsAt = start
	b.EndsAt = start.Add(time.Duration(b.DurationMinutes) * time.Minute)
	return nil
}

// ScheduledEndClock returns the clock time at which the booking ends.
func (b *Booking) ScheduledEndClock() ClockTime {
	return b.ScheduledTime.Add(b.DurationMinutes)
}

// Validate checks the kind-specific shape of the booking.
func (b *Booking) Validate() error {
	if b.RequesterID == "" {
		return apperrors.NewValidationError("requester id is required")
	}
	if b.ProviderID == "" {
		return apperrors.NewValidationError("provider id is required")
	}
	if b.DurationMinutes <= 0 {
		return apperrors.NewValidationError("duration must be positive")
	}

	switch b.Kind {
	case BookingKindAppointment:
		if b.Resource.ServiceID == "" {
			return apperrors.NewValidationError("service id is required for appointments")
		}
		if b.Resource.TestID != "" || b.Resource.PackageID != "" {
			return apperrors.NewValidationError("appointments cannot reference a test or package")
		}
		if !b.Modality.Valid() {
			return apperrors.NewValidationError(fmt.Sprintf("invalid modality %q", b.Modality))
		}
		if b.HomeCollection {
			return apperrors.NewValidationError("home collection applies to lab bookings only")
		}
	case BookingKindLab:
		hasTest := b.Resource.TestID != ""
		hasPackage := b.Resource.PackageID != ""
		if hasTest == hasPackage {
			return apperrors.NewValidationError("lab bookings need exactly one of test id or package id")
		}
		if b.Resource.ServiceID != "" {
			return apperrors.NewValidationError("lab bookings cannot reference a service")
		}
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown booking kind %q", b.Kind))
	}

	return b.Amounts.Validate()
}

// Lifecycle returns the state machine for the booking's kind.
func (b *Booking) Lifecycle() Lifecycle {
	return LifecycleFor(b.Kind)
}

// Open puts a new booking in its initial status and writes the first history entry.
func (b *Booking) Open(actor Actor, note string, at time.Time) {
	b.Status = b.Lifecycle().Initial()
	b.StatusHistory = []StatusEntry{{Status: b.Status, At: at, Note: note, Actor: actor}}
	b.CreatedAt = at
	b.UpdatedAt = at
}

// Transition moves the booking to status to, appending a history entry.
// It is the only code path that changes Status after Open.
func (b *Booking) Transition(to BookingStatus, actor Actor, note string, at time.Time) error {
	lc := b.Lifecycle()
	if !lc.Knows(to) {
		return apperrors.NewValidationError(fmt.Sprintf("status %q is not valid for %s bookings", to, b.Kind))
	}
	if b.Status == to {
		return apperrors.NewConflictError(fmt.Sprintf("booking is already in that state (%s)", to))
	}
	if lc.IsTerminal(b.Status) {
		return apperrors.NewConflictError(fmt.Sprintf("booking is %s and can no longer change", b.Status))
	}
	if !lc.Allows(b.Status, to) {
		return apperrors.NewValidationError(fmt.Sprintf("cannot move booking from %s to %s", b.Status, to))
	}

	b.Status = to
	b.StatusHistory = append(b.StatusHistory, StatusEntry{Status: to, At: at, Note: note, Actor: actor})
	b.UpdatedAt = at
	return nil
}

// Annotate records a note without changing status; the entry repeats the current status.
func (b *Booking) Annotate(actor Actor, note string, at time.Time) {
	b.StatusHistory = append(b.StatusHistory, StatusEntry{Status: b.Status, At: at, Note: note, Actor: actor})
	b.UpdatedAt = at
}

// IsTerminal reports whether the booking can no longer change status.
func (b *Booking) IsTerminal() bool {
	return b.Lifecycle().IsTerminal(b.Status)
}

// IsCancelled reports whether the booking ended in a capacity-releasing status.
func (b *Booking) IsCancelled() bool {
	return b.Lifecycle().ReleasesCapacity(b.Status)
}

// SlotKey identifies the capacity bucket the booking occupies.
func (b *Booking) SlotKey() SlotKey {
	return SlotKey{ProviderID: b.ProviderID, Date: b.ScheduledDate, Time: b.ScheduledTime}
}

// LatestEntry returns the last history entry.
func (b *Booking) LatestEntry() (StatusEntry, bool) {
	if len(b.StatusHistory) == 0 {
		return StatusEntry{}, false
	}
	return b.StatusHistory[len(b.StatusHistory)-1], true
}
