package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carebook/backend/internal/adapters/database"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	"github.com/zatekoja/carebook/backend/pkg/config"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s up|down|status\n", os.Args[0])
	}
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-migrate", cfg.Env)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	ctx := context.Background()
	db := pgClient.DB().DB

	switch command {
	case "up":
		err = database.MigrateUp(ctx, db)
	case "down":
		err = database.MigrateDown(ctx, db)
	case "status":
		var version int64
		version, err = database.MigrationVersion(ctx, db)
		if err == nil {
			log.Info().Int64("version", version).Msg("Current migration version")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Migration failed")
	}
	log.Info().Str("command", command).Msg("Migration finished")
}
