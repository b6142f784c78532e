package repositories

import (
	"context"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// SlotCounterRepository keeps one booked counter per provider slot
type SlotCounterRepository interface {
	// Reserve increments the counter when it is below max. It returns
	// false without error when the slot is already full.
	Reserve(ctx context.Context, key entities.SlotKey, max int) (bool, error)

	// Release decrements the counter, never below zero
	Release(ctx context.Context, key entities.SlotKey) error

	// Counts returns booked counts for every slot of the provider on date
	Counts(ctx context.Context, providerID, date string) (map[entities.ClockTime]int, error)
}
