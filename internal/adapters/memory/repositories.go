package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

type bookingRepo struct{ v *view }

func (r *bookingRepo) Create(ctx context.Context, b *entities.Booking) error {
	st, done := r.v.write()
	defer done()
	if _, exists := st.bookings[b.ID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("booking %s already exists", b.ID))
	}
	st.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r *bookingRepo) GetByID(ctx context.Context, id string) (*entities.Booking, error) {
	st, done := r.v.read()
	defer done()
	b, ok := st.bookings[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("booking with id %s not found", id))
	}
	return copyBooking(b), nil
}

func (r *bookingRepo) GetForUpdate(ctx context.Context, id string) (*entities.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *bookingRepo) Update(ctx context.Context, b *entities.Booking) error {
	st, done := r.v.write()
	defer done()
	if _, ok := st.bookings[b.ID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("booking with id %s not found", b.ID))
	}
	st.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r *bookingRepo) List(ctx context.Context, f repositories.BookingFilter) ([]*entities.Booking, error) {
	st, done := r.v.read()
	defer done()

	var out []*entities.Booking
	for _, b := range st.bookings {
		switch {
		case f.Kind != "" && b.Kind != f.Kind:
		case f.Status != "" && b.Status != f.Status:
		case f.ProviderID != "" && b.ProviderID != f.ProviderID:
		case f.RequesterID != "" && b.RequesterID != f.RequesterID:
		case f.From != nil && b.StartsAt.Before(*f.From):
		case f.To != nil && !b.StartsAt.Before(*f.To):
		default:
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, f.Offset, f.Limit), nil
}

func (r *bookingRepo) HasPaidOverlap(ctx context.Context, providerID, date string, start, end entities.ClockTime, excludeID string) (bool, error) {
	st, done := r.v.read()
	defer done()
	for _, b := range st.bookings {
		if b.ID == excludeID || b.ProviderID != providerID || b.ScheduledDate != date {
			continue
		}
		if !b.PaymentCompleted || b.IsCancelled() {
			continue
		}
		if b.ScheduledTime < end && b.ScheduledEndClock() > start {
			return true, nil
		}
	}
	return false, nil
}

func (r *bookingRepo) ListEndedScheduled(ctx context.Context, endedBefore time.Time, limit int) ([]*entities.Booking, error) {
	st, done := r.v.read()
	defer done()
	var out []*entities.Booking
	for _, b := range st.bookings {
		if b.Kind == entities.BookingKindAppointment && b.Status == entities.StatusScheduled &&
			b.PaymentCompleted && !b.EndsAt.After(endedBefore) && len(st.outcomes[b.ID]) == 0 {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	return paginate(out, 0, limit), nil
}

func (r *bookingRepo) ListUnpaidStarted(ctx context.Context, startedBefore time.Time, limit int) ([]*entities.Booking, error) {
	st, done := r.v.read()
	defer done()
	var out []*entities.Booking
	for _, b := range st.bookings {
		if !b.PaymentCompleted && !b.IsTerminal() && !b.StartsAt.After(startedBefore) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return paginate(out, 0, limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type paymentRepo struct{ v *view }

func (r *paymentRepo) Create(ctx context.Context, p *entities.PaymentRecord) error {
	st, done := r.v.write()
	defer done()
	if _, exists := st.payments[p.BookingID]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("booking %s already has a payment record", p.BookingID))
	}
	st.payments[p.BookingID] = copyPayment(p)
	return nil
}

func (r *paymentRepo) GetByBookingID(ctx context.Context, bookingID string) (*entities.PaymentRecord, error) {
	st, done := r.v.read()
	defer done()
	p, ok := st.payments[bookingID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("payment record for booking %s not found", bookingID))
	}
	return copyPayment(p), nil
}

func (r *paymentRepo) GetByBookingIDForUpdate(ctx context.Context, bookingID string) (*entities.PaymentRecord, error) {
	return r.GetByBookingID(ctx, bookingID)
}

func (r *paymentRepo) GetByGatewayRefForUpdate(ctx context.Context, ref string) (*entities.PaymentRecord, error) {
	if ref == "" {
		return nil, apperrors.NewValidationError("gateway reference is required")
	}
	st, done := r.v.read()
	defer done()
	for _, p := range st.payments {
		if p.GatewayLinkID == ref || p.GatewayOrderID == ref {
			return copyPayment(p), nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("payment record for gateway reference %s not found", ref))
}

func (r *paymentRepo) Update(ctx context.Context, p *entities.PaymentRecord) error {
	st, done := r.v.write()
	defer done()
	if _, ok := st.payments[p.BookingID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("payment record %s not found", p.ID))
	}
	st.payments[p.BookingID] = copyPayment(p)
	return nil
}

func (r *paymentRepo) ListByBookingIDs(ctx context.Context, bookingIDs []string) ([]*entities.PaymentRecord, error) {
	st, done := r.v.read()
	defer done()
	var out []*entities.PaymentRecord
	for _, id := range bookingIDs {
		if p, ok := st.payments[id]; ok {
			out = append(out, copyPayment(p))
		}
	}
	return out, nil
}

type scheduleRepo struct{ v *view }

func (r *scheduleRepo) Create(ctx context.Context, w *entities.ScheduleWindow) error {
	st, done := r.v.write()
	defer done()
	st.schedules[w.ID] = copySchedule(w)
	return nil
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*entities.ScheduleWindow, error) {
	st, done := r.v.read()
	defer done()
	w, ok := st.schedules[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("schedule window with id %s not found", id))
	}
	return copySchedule(w), nil
}

func (r *scheduleRepo) GetForUpdate(ctx context.Context, id string) (*entities.ScheduleWindow, error) {
	return r.GetByID(ctx, id)
}

func (r *scheduleRepo) GetApproved(ctx context.Context, providerID string, modality entities.Modality) (*entities.ScheduleWindow, error) {
	st, done := r.v.read()
	defer done()
	for _, w := range st.schedules {
		if w.ProviderID == providerID && w.Modality == modality && w.Status == entities.ScheduleApproved {
			return copySchedule(w), nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("no approved %s schedule for provider %s", modality, providerID))
}

func (r *scheduleRepo) Update(ctx context.Context, w *entities.ScheduleWindow) error {
	st, done := r.v.write()
	defer done()
	if w.Status == entities.ScheduleApproved {
		for id, other := range st.schedules {
			if id != w.ID && other.ProviderID == w.ProviderID && other.Modality == w.Modality &&
				other.Status == entities.ScheduleApproved {
				return apperrors.NewConflictError("provider already has an approved schedule for this modality")
			}
		}
	}
	st.schedules[w.ID] = copySchedule(w)
	return nil
}

type slotCounterRepo struct{ v *view }

func (r *slotCounterRepo) Reserve(ctx context.Context, key entities.SlotKey, max int) (bool, error) {
	st, done := r.v.write()
	defer done()
	if st.counters[key] >= max {
		return false, nil
	}
	st.counters[key]++
	return true, nil
}

func (r *slotCounterRepo) Release(ctx context.Context, key entities.SlotKey) error {
	st, done := r.v.write()
	defer done()
	if st.counters[key] > 0 {
		st.counters[key]--
	}
	return nil
}

func (r *slotCounterRepo) Counts(ctx context.Context, providerID, date string) (map[entities.ClockTime]int, error) {
	st, done := r.v.read()
	defer done()
	out := make(map[entities.ClockTime]int)
	for k, n := range st.counters {
		if k.ProviderID == providerID && k.Date == date {
			out[k.Time] = n
		}
	}
	return out, nil
}

type entitlementRepo struct{ v *view }

func (r *entitlementRepo) Create(ctx context.Context, e *entities.Entitlement) error {
	st, done := r.v.write()
	defer done()
	st.entitlements[e.ID] = copyEntitlement(e)
	return nil
}

func (r *entitlementRepo) FindUsableForUpdate(ctx context.Context, payerID, category string, now time.Time) (*entities.Entitlement, error) {
	st, done := r.v.read()
	defer done()
	var best *entities.Entitlement
	for _, e := range st.entitlements {
		if e.PayerID != payerID || e.Category != category || !e.Usable(now) {
			continue
		}
		if best == nil || e.CreatedAt.Before(best.CreatedAt) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyEntitlement(best), nil
}

func (r *entitlementRepo) GetForUpdate(ctx context.Context, id string) (*entities.Entitlement, error) {
	st, done := r.v.read()
	defer done()
	e, ok := st.entitlements[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("entitlement with id %s not found", id))
	}
	return copyEntitlement(e), nil
}

func (r *entitlementRepo) Update(ctx context.Context, e *entities.Entitlement) error {
	st, done := r.v.write()
	defer done()
	if _, ok := st.entitlements[e.ID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("entitlement with id %s not found", e.ID))
	}
	st.entitlements[e.ID] = copyEntitlement(e)
	return nil
}

type outcomeRepo struct{ v *view }

func (r *outcomeRepo) Create(ctx context.Context, a *entities.OutcomeArtifact) error {
	st, done := r.v.write()
	defer done()
	cp := *a
	st.outcomes[a.BookingID] = append(st.outcomes[a.BookingID], &cp)
	return nil
}

func (r *outcomeRepo) ExistsForBooking(ctx context.Context, bookingID string) (bool, error) {
	st, done := r.v.read()
	defer done()
	return len(st.outcomes[bookingID]) > 0, nil
}

func (r *outcomeRepo) ListByBooking(ctx context.Context, bookingID string) ([]*entities.OutcomeArtifact, error) {
	st, done := r.v.read()
	defer done()
	out := make([]*entities.OutcomeArtifact, 0, len(st.outcomes[bookingID]))
	for _, a := range st.outcomes[bookingID] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}
