// Package memory is an in-process implementation of the booking store used
// for local development and service tests.
package memory

import (
	"context"
	"sync"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
)

type state struct {
	bookings     map[string]*entities.Booking
	payments     map[string]*entities.PaymentRecord // keyed by booking id
	schedules    map[string]*entities.ScheduleWindow
	counters     map[entities.SlotKey]int
	entitlements map[string]*entities.Entitlement
	outcomes     map[string][]*entities.OutcomeArtifact // keyed by booking id
}

func newState() *state {
	return &state{
		bookings:     make(map[string]*entities.Booking),
		payments:     make(map[string]*entities.PaymentRecord),
		schedules:    make(map[string]*entities.ScheduleWindow),
		counters:     make(map[entities.SlotKey]int),
		entitlements: make(map[string]*entities.Entitlement),
		outcomes:     make(map[string][]*entities.OutcomeArtifact),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.bookings {
		c.bookings[k] = copyBooking(v)
	}
	for k, v := range s.payments {
		c.payments[k] = copyPayment(v)
	}
	for k, v := range s.schedules {
		c.schedules[k] = copySchedule(v)
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.entitlements {
		c.entitlements[k] = copyEntitlement(v)
	}
	for k, v := range s.outcomes {
		list := make([]*entities.OutcomeArtifact, len(v))
		for i, a := range v {
			cp := *a
			list[i] = &cp
		}
		c.outcomes[k] = list
	}
	return c
}

// Store is an in-memory unit of work. Transactions are serialised and
// work on a private copy of the data that replaces the committed copy
// when fn succeeds.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{st: newState()}
}

// view resolves the state a repository call operates on.
type view struct {
	store *Store
	tx    *state
}

func (v *view) read() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.store.mu.RLock()
	return v.store.st, v.store.mu.RUnlock
}

// write must not be called on the committed view from inside WithinTx.
func (v *view) write() (*state, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.store.txMu.Lock()
	v.store.mu.Lock()
	return v.store.st, func() {
		v.store.mu.Unlock()
		v.store.txMu.Unlock()
	}
}

type repoSet struct {
	v *view
}

func (r repoSet) Bookings() repositories.BookingRepository         { return &bookingRepo{r.v} }
func (r repoSet) Payments() repositories.PaymentRepository         { return &paymentRepo{r.v} }
func (r repoSet) Schedules() repositories.ScheduleRepository       { return &scheduleRepo{r.v} }
func (r repoSet) SlotCounters() repositories.SlotCounterRepository { return &slotCounterRepo{r.v} }
func (r repoSet) Entitlements() repositories.EntitlementRepository { return &entitlementRepo{r.v} }
func (r repoSet) Outcomes() repositories.OutcomeRepository         { return &outcomeRepo{r.v} }

func (s *Store) committed() repoSet {
	return repoSet{v: &view{store: s}}
}

func (s *Store) Bookings() repositories.BookingRepository { return s.committed().Bookings() }
func (s *Store) Payments() repositories.PaymentRepository { return s.committed().Payments() }
func (s *Store) Schedules() repositories.ScheduleRepository {
	return s.committed().Schedules()
}
func (s *Store) SlotCounters() repositories.SlotCounterRepository {
	return s.committed().SlotCounters()
}
func (s *Store) Entitlements() repositories.EntitlementRepository {
	return s.committed().Entitlements()
}
func (s *Store) Outcomes() repositories.OutcomeRepository { return s.committed().Outcomes() }

// WithinTx runs fn against a private copy of the data and publishes the
// copy when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, repoSet{v: &view{tx: work}}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

var _ repositories.UnitOfWork = (*Store)(nil)

func copyBooking(b *entities.Booking) *entities.Booking {
	cp := *b
	cp.StatusHistory = append([]entities.StatusEntry(nil), b.StatusHistory...)
	return &cp
}

func copyPayment(p *entities.PaymentRecord) *entities.PaymentRecord {
	cp := *p
	return &cp
}

func copySchedule(w *entities.ScheduleWindow) *entities.ScheduleWindow {
	cp := *w
	cp.Days = make([]entities.ScheduleDay, len(w.Days))
	for i, d := range w.Days {
		cp.Days[i] = entities.ScheduleDay{Day: d.Day, Ranges: append([]entities.TimeRange(nil), d.Ranges...)}
	}
	if w.ReviewedBy != nil {
		r := *w.ReviewedBy
		cp.ReviewedBy = &r
	}
	return &cp
}

func copyEntitlement(e *entities.Entitlement) *entities.Entitlement {
	cp := *e
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
