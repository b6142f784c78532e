package repositories

import "context"

// Store groups the repositories that take part in a booking unit of work.
// Implementations returned inside WithinTx share one transaction.
type Store interface {
	Bookings() BookingRepository
	Payments() PaymentRepository
	Schedules() ScheduleRepository
	SlotCounters() SlotCounterRepository
	Entitlements() EntitlementRepository
	Outcomes() OutcomeRepository
}

// UnitOfWork runs fn inside a single transaction. fn's error rolls the
// transaction back; a nil return commits it.
type UnitOfWork interface {
	Store
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
