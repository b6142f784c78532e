package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	"github.com/zatekoja/carebook/backend/pkg/config"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// SlotConfig describes the bookable grid of a day.
type SlotConfig struct {
	SlotMinutes    int
	OperatingStart entities.ClockTime
	OperatingEnd   entities.ClockTime
	MaxPerSlot     int
}

// DefaultSlotConfig is a 30 minute grid from 07:00 to 20:00 with five bookings per slot.
func DefaultSlotConfig() SlotConfig {
	return SlotConfig{
		SlotMinutes:    30,
		OperatingStart: entities.MustClock("07:00"),
		OperatingEnd:   entities.MustClock("20:00"),
		MaxPerSlot:     5,
	}
}

// SlotConfigFrom reads the grid from booking configuration.
func SlotConfigFrom(cfg config.BookingConfig) (SlotConfig, error) {
	start, err := entities.ParseClock(cfg.OperatingStart)
	if err != nil {
		return SlotConfig{}, fmt.Errorf("OPERATING_START: %w", err)
	}
	end, err := entities.ParseClock(cfg.OperatingEnd)
	if err != nil {
		return SlotConfig{}, fmt.Errorf("OPERATING_END: %w", err)
	}
	if end < start {
		return SlotConfig{}, fmt.Errorf("operating window %s-%s is empty", start, end)
	}
	return SlotConfig{
		SlotMinutes:    cfg.SlotMinutes,
		OperatingStart: start,
		OperatingEnd:   end,
		MaxPerSlot:     cfg.MaxPerSlot,
	}, nil
}

// SlotAllocator bounds the number of bookings that share one slot.
type SlotAllocator struct {
	cfg     SlotConfig
	store   repositories.Store
	metrics *observability.Metrics
}

// NewSlotAllocator creates a new slot allocator
func NewSlotAllocator(cfg SlotConfig, store repositories.Store, metrics *observability.Metrics) *SlotAllocator {
	return &SlotAllocator{cfg: cfg, store: store, metrics: metrics}
}

// Config returns the grid the allocator enforces.
func (a *SlotAllocator) Config() SlotConfig {
	return a.cfg
}

// Grid lists every slot start of the day. Both window bounds are slots.
func (a *SlotAllocator) Grid() []entities.ClockTime {
	var grid []entities.ClockTime
	for t := a.cfg.OperatingStart; t <= a.cfg.OperatingEnd; t = t.Add(a.cfg.SlotMinutes) {
		grid = append(grid, t)
	}
	return grid
}

// CheckGrid validates clock against the operating window and the slot grid.
func (a *SlotAllocator) CheckGrid(clock entities.ClockTime) error {
	if clock < a.cfg.OperatingStart || clock > a.cfg.OperatingEnd {
		return apperrors.NewValidationError(fmt.Sprintf("outside operating hours (%s-%s)", a.cfg.OperatingStart, a.cfg.OperatingEnd))
	}
	if int(clock-a.cfg.OperatingStart)%a.cfg.SlotMinutes != 0 {
		return apperrors.NewValidationError(fmt.Sprintf("invalid slot time %s, slots are every %d minutes", clock, a.cfg.SlotMinutes))
	}
	return nil
}

// ValidateSlot checks the grid and the remaining capacity of the slot.
// It reads committed data; Reserve is the authoritative check.
func (a *SlotAllocator) ValidateSlot(ctx context.Context, providerID, date string, clock entities.ClockTime) error {
	if err := a.CheckGrid(clock); err != nil {
		return err
	}
	return a.CheckCapacity(ctx, providerID, date, clock)
}

// CheckCapacity reports a conflict when the slot starting at clock is full.
func (a *SlotAllocator) CheckCapacity(ctx context.Context, providerID, date string, clock entities.ClockTime) error {
	counts, err := a.store.SlotCounters().Counts(ctx, providerID, date)
	if err != nil {
		return err
	}
	if counts[clock] >= a.cfg.MaxPerSlot {
		return apperrors.NewConflictError("maximum capacity reached for this slot")
	}
	return nil
}

// EnumerateSlots returns the capacity of every slot of the provider on date.
func (a *SlotAllocator) EnumerateSlots(ctx context.Context, providerID, date string) ([]entities.SlotAvailability, error) {
	counts, err := a.store.SlotCounters().Counts(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	grid := a.Grid()
	slots := make([]entities.SlotAvailability, 0, len(grid))
	for _, t := range grid {
		remaining := a.cfg.MaxPerSlot - counts[t]
		if remaining < 0 {
			remaining = 0
		}
		slots = append(slots, entities.SlotAvailability{
			Time:              t,
			CapacityRemaining: remaining,
			IsFull:            remaining == 0,
		})
	}
	return slots, nil
}

// Reserve takes one unit of capacity inside tx.
func (a *SlotAllocator) Reserve(ctx context.Context, tx repositories.Store, key entities.SlotKey) error {
	ok, err := tx.SlotCounters().Reserve(ctx, key, a.cfg.MaxPerSlot)
	if err != nil {
		return err
	}
	if !ok {
		observability.RecordCapacityRejection(ctx, a.metrics, key.ProviderID)
		return apperrors.NewConflictError("maximum capacity reached for this slot")
	}
	return nil
}

// Release gives back one unit of capacity inside tx.
func (a *SlotAllocator) Release(ctx context.Context, tx repositories.Store, key entities.SlotKey) error {
	return tx.SlotCounters().Release(ctx, key)
}
