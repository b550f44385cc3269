package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

type Events interface {
	Publish(ctx context.Context, key string, v any) error
}

type AggregatedEvent struct {
	Files      int       `json:"files"`
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped"`
	Buckets    int       `json:"buckets"`
	Stations   int       `json:"stations"`
	ExportPath string    `json:"export_path"`
	At         time.Time `json:"at"`
}

// Run ejecuta el job completo: CSV -> hourly_demand -> JSON de pronóstico -> evento.
func Run(ctx context.Context, cfg Config, repo Repository, events Events) (AggregatedEvent, error) {
	start := time.Now()
	demand, stats, err := LoadHourlyDemand(cfg.RawDir, cfg.Pattern)
	if err != nil {
		return AggregatedEvent{}, err
	}
	log.Info().
		Int("files", stats.Files).
		Str("rows", humanize.Comma(int64(stats.Rows))).
		Str("skipped", humanize.Comma(int64(stats.Skipped))).
		Str("buckets", humanize.Comma(int64(len(demand)))).
		Msg("trip data aggregated")

	if err := repo.UpsertDemand(ctx, demand); err != nil {
		return AggregatedEvent{}, fmt.Errorf("store hourly demand: %w", err)
	}
	stored, err := repo.ListDemand(ctx)
	if err != nil {
		return AggregatedEvent{}, fmt.Errorf("read hourly demand: %w", err)
	}
	size, err := WriteForecast(cfg.ExportPath, stored)
	if err != nil {
		return AggregatedEvent{}, fmt.Errorf("export forecast: %w", err)
	}
	log.Info().Str("path", cfg.ExportPath).Str("size", humanize.Bytes(uint64(size))).
		Int("rows", len(stored)).Msg("forecast exported")

	stations := make(map[string]struct{})
	for _, d := range demand {
		stations[d.StationID] = struct{}{}
	}
	ev := AggregatedEvent{
		Files:      stats.Files,
		Rows:       stats.Rows,
		Skipped:    stats.Skipped,
		Buckets:    len(demand),
		Stations:   len(stations),
		ExportPath: cfg.ExportPath,
		At:         time.Now().UTC(),
	}
	if events != nil {
		if err := events.Publish(ctx, RKDemandAggregated, ev); err != nil {
			log.Warn().Err(err).Msg("publish demand.aggregated")
		}
	}
	log.Info().Str("took", humanize.RelTime(start, time.Now(), "", "")).Msg("ingest done")
	return ev, nil
}
