package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
}

type Events interface {
	PublishRecommended(ctx context.Context, run *Run) error
}

// Service is built once at startup and shared by every transport. It keeps
// no per-request state: each call allocates on its own copy of the tables.
type Service struct {
	store    RunStore
	events   Events
	metrics  *Metrics
	runs     *lru.Cache[string, *Run]
	maxMoves int
}

// NewService wires the collaborators. store, events and metrics may be nil.
// maxMoves is used when a request does not carry its own cap.
func NewService(store RunStore, events Events, metrics *Metrics, maxMoves, cacheSize int) (*Service, error) {
	if maxMoves <= 0 {
		maxMoves = DefaultMaxMoves
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	runs, err := lru.New[string, *Run](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{store: store, events: events, metrics: metrics, runs: runs, maxMoves: maxMoves}, nil
}

// Handle validates a raw payload and runs the allocator on it.
func (s *Service) Handle(ctx context.Context, payload map[string]any, source string) (*Run, error) {
	req, err := ParseRequest(payload)
	if err != nil {
		s.metrics.observeError(source, err)
		log.Warn().Err(err).Str("source", source).Msg("rebalance: rejected payload")
		return nil, err
	}
	return s.Recommend(ctx, req, source)
}

func (s *Service) Recommend(ctx context.Context, req RebalanceRequest, source string) (*Run, error) {
	start := time.Now()
	maxMoves := req.MaxMoves
	if maxMoves == 0 {
		maxMoves = s.maxMoves
	}
	if req.Coerced > 0 {
		log.Warn().Int("cells", req.Coerced).Msg("rebalance: non-numeric bikes values treated as 0")
	}

	moves := Allocate(req.Inventory, req.Forecast, maxMoves)
	run := &Run{
		ID:           uuid.NewString(),
		Source:       source,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		StationCount: len(req.Inventory),
		MaxMoves:     maxMoves,
		MeanBikes:    MeanBikes(req.Inventory),
		Moves:        moves,
		NumericIDs:   numericIDs(req.Inventory, moves),
	}
	for _, m := range moves {
		run.TotalBikes += m.BikesToMove
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			s.metrics.observeError(source, err)
			return nil, fmt.Errorf("save run: %w", err)
		}
	}
	s.runs.Add(run.ID, run)

	if s.events != nil {
		if err := s.events.PublishRecommended(ctx, run); err != nil {
			log.Error().Err(err).Str("run", run.ID).Msg("rebalance: publish event failed")
		}
	}

	s.metrics.observeRun(run, time.Since(start))
	log.Info().
		Str("run", run.ID).
		Str("source", source).
		Int("stations", run.StationCount).
		Int("moves", len(run.Moves)).
		Int("bikes", run.TotalBikes).
		Msg("rebalance: recommended")
	return run, nil
}

func (s *Service) GetRun(ctx context.Context, id string) (*Run, error) {
	if run, ok := s.runs.Get(id); ok {
		return run, nil
	}
	if s.store == nil {
		return nil, ErrRunNotFound
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrRunNotFound) {
			err = fmt.Errorf("load run %s: %w", id, err)
		}
		return nil, err
	}
	s.runs.Add(id, run)
	return run, nil
}
