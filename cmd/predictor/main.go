// The predictor binary runs the daily fleet-level sales forecast: it
// fetches the rolling order window from Postgres, trains or loads the
// model and upserts the next-day prediction. With --daemon it schedules
// itself at 14:30 UTC every day.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/osiris-sg/sugarcane-backend/internal/config"
	"github.com/osiris-sg/sugarcane-backend/internal/database"
	"github.com/osiris-sg/sugarcane-backend/internal/pipeline"
	"github.com/osiris-sg/sugarcane-backend/internal/scheduler"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	daemon := flag.Bool("daemon", false, "run as a daemon with the built-in scheduler")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config failed")
	}

	lvl, _ := zerolog.ParseLevel(cfg.LogLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	db, err := database.New(database.ConnectionParams{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		DBName:   cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to database failed")
	}
	defer db.Close()

	if devices, err := db.FetchActiveDevices(context.Background()); err != nil {
		log.Warn().Err(err).Msg("fetching active devices failed")
	} else {
		log.Info().Int("count", len(devices)).Msg("Active devices on platform")
	}

	p := pipeline.New(cfg, db, db)

	if *daemon {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := scheduler.New(func(ctx context.Context) error {
			_, err := p.Run(ctx)
			return err
		})
		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("daemon failed")
		}
		return
	}

	if _, err := p.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("prediction run failed")
	}
}
