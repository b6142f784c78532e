package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/carebook/backend/internal/adapters/database"
	"github.com/zatekoja/carebook/backend/internal/application/services"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carebook/backend/pkg/config"
)

// Seeds approved schedule windows and a few entitlements for local testing.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if err := database.MigrateUp(ctx, pgClient.DB().DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				outcome_artifacts,
				payment_records,
				slot_counters,
				bookings,
				entitlements,
				schedule_windows
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	store := database.NewStore(pgClient)
	schedules := services.NewScheduleService(store)
	admin := entities.Actor{ID: "seed-admin", Role: entities.RoleAdmin}

	weekdays := []entities.Weekday{entities.Monday, entities.Tuesday, entities.Wednesday, entities.Thursday, entities.Friday}
	clinicHours := []entities.TimeRange{
		{Start: entities.MustClock("09:00"), End: entities.MustClock("13:00")},
		{Start: entities.MustClock("14:00"), End: entities.MustClock("18:00")},
	}

	// 1. Seed provider schedules
	providerIDs := []string{"prov-general-1", "prov-general-2", "prov-lab-1"}
	for _, providerID := range providerIDs {
		for _, modality := range []entities.Modality{entities.ModalityInPerson, entities.ModalityRemote} {
			days := make([]entities.ScheduleDay, 0, len(weekdays))
			for _, d := range weekdays {
				days = append(days, entities.ScheduleDay{Day: d, Ranges: clinicHours})
			}
			provider := entities.Actor{ID: providerID, Role: entities.RoleProvider}
			window, err := schedules.RequestChange(ctx, provider, &entities.ScheduleWindow{
				ProviderID: providerID,
				Modality:   modality,
				Days:       days,
			})
			if err != nil {
				log.Printf("Failed to request schedule for %s (%s): %v", providerID, modality, err)
				continue
			}
			if _, err := schedules.Approve(ctx, window.ID, admin, "seeded"); err != nil {
				log.Printf("Failed to approve schedule for %s (%s): %v", providerID, modality, err)
			}
		}
	}

	// 2. Seed entitlements
	expires := time.Now().AddDate(0, 6, 0)
	entitlements := []entities.Entitlement{
		{ID: uuid.New().String(), PayerID: "payer-corporate-1", Category: "lab", Remaining: 20, ExpiresAt: &expires},
		{ID: uuid.New().String(), PayerID: "payer-corporate-1", Category: "general", Remaining: 10, ExpiresAt: &expires},
		{ID: uuid.New().String(), PayerID: "payer-ngo-1", Category: "general", Remaining: 5},
	}
	for i := range entitlements {
		e := entitlements[i]
		e.CreatedAt = time.Now()
		e.UpdatedAt = e.CreatedAt
		if err := store.Entitlements().Create(ctx, &e); err != nil {
			log.Printf("Failed to create entitlement for %s: %v", e.PayerID, err)
		}
	}

	log.Printf("Seeding completed: %d providers, %d entitlements", len(providerIDs), len(entitlements))
}
