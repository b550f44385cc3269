package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run())
}

// run devuelve el código de salida; así los defer se ejecutan antes de os.Exit.
func run() int {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := LoadConfig(os.Getenv("INGEST_CONFIG"))
	if err != nil {
		log.Error().Err(err).Msg("config")
		return 2
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := NewSQLiteRepo(ctx, cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Str("db", cfg.DBPath).Msg("open db")
		return 1
	}
	defer repo.Close()

	var events Events
	rb, err := NewRabbit(cfg.RabbitURL, cfg.Exchange)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
	} else if rb != nil {
		defer rb.Close()
		events = rb
	}

	log.Info().Str("raw_dir", cfg.RawDir).Str("pattern", cfg.Pattern).Str("db", cfg.DBPath).Msg("ingest starting")
	if _, err := Run(ctx, cfg, repo, events); err != nil {
		log.Error().Err(err).Msg("ingest failed")
		return 1
	}
	return 0
}
