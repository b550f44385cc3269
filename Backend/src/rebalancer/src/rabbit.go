package main

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

const RKRebalanceRecommended = "rebalance.recommended"

type Rabbit struct {
	cfg  Config
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
}

func NewRabbit(cfg Config) (*Rabbit, error) {
	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	r := &Rabbit{cfg: cfg, conn: conn, ch: ch}
	for _, q := range []string{cfg.QSnapshotReq, cfg.QResult} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			r.Close()
			return nil, err
		}
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Rabbit) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

// Mensajes

// SnapshotResult is published to the result queue for every snapshot that
// was valid JSON, whether or not it passed validation.
type SnapshotResult struct {
	SnapshotID      string               `json:"snapshot_id,omitempty"`
	RunID           string               `json:"run_id,omitempty"`
	State           string               `json:"state"`
	Reason          string               `json:"reason,omitempty"`
	Recommendations []moveRecord `json:"recommendations"`
}

const (
	StateRecommended = "RECOMMENDED"
	StateFailed      = "FAILED"
)

type RecommendedEvent struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
	Stations   int       `json:"station_count"`
	Moves      int       `json:"moves"`
	TotalBikes int       `json:"total_bikes"`
}

// Helpers para los publicadores
func (r *Rabbit) publish(exchange, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return retry(3, 500*time.Millisecond, func() error {
		return r.ch.Publish(exchange, key, false, false, amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		})
	})
}

// PublishRecommended announces a stored run on the events exchange.
func (r *Rabbit) PublishRecommended(_ context.Context, run *Run) error {
	return r.publish(r.cfg.Exchange, RKRebalanceRecommended, RecommendedEvent{
		RunID:      run.ID,
		Source:     run.Source,
		CreatedAt:  run.CreatedAt,
		Stations:   run.StationCount,
		Moves:      len(run.Moves),
		TotalBikes: run.TotalBikes,
	})
}

type recommender interface {
	Handle(ctx context.Context, payload map[string]any, source string) (*Run, error)
}

// Consumidores RabbitMQ
func (r *Rabbit) StartConsumers(ctx context.Context, svc recommender) error {
	msgs, err := r.ch.Consume(r.cfg.QSnapshotReq, "rebalancer-snapshot-worker", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for m := range msgs {
			res, ok := processSnapshot(ctx, svc, m.Body)
			if !ok {
				_ = m.Ack(false)
				continue
			}
			if err := r.publish("", r.cfg.QResult, res); err != nil {
				log.Error().Err(err).Str("snapshot", res.SnapshotID).Msg("snapshot: publish result failed")
			}
			_ = m.Ack(false)
		}
		log.Warn().Msg("snapshot: deliveries channel closed")
	}()
	return nil
}

// processSnapshot turns one queue message into its result. ok is false when
// the body is not JSON; such messages are dropped. Numbers are kept as
// json.Number so large station ids stay exact.
func processSnapshot(ctx context.Context, svc recommender, body []byte) (SnapshotResult, bool) {
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		log.Error().Err(err).Msg("snapshot: invalid json")
		return SnapshotResult{}, false
	}

	res := SnapshotResult{Recommendations: []moveRecord{}}
	if id, ok := payload["snapshot_id"]; ok {
		res.SnapshotID, _, _ = stationID(id)
	}
	log.Info().Str("snapshot", res.SnapshotID).Msg("snapshot: received")

	run, err := svc.Handle(ctx, payload, SourceQueue)
	if err != nil {
		res.State = StateFailed
		res.Reason = err.Error()
		return res, true
	}
	res.State = StateRecommended
	res.RunID = run.ID
	res.Recommendations = moveRecords(run.Moves, run.NumericIDs)
	return res, true
}

// retry para reintentos de publicar
func retry(n int, sleep time.Duration, fn func() error) error {
	var err error
	for i := 0; i < n; i++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(sleep)
	}
	return err
}
