package main

import (
	"encoding/json"
	"time"
)

// Inventario por estación:
// available_bikes: bicicletas ancladas en el momento del snapshot.
// Se guarda como float64 para no perder precisión antes del truncado.
type StationInventory struct {
	StationID      string  `json:"station_id" validate:"required"`
	AvailableBikes float64 `json:"available_bikes"`
	// Numeric: el id llegó como número y se devuelve como número.
	Numeric bool `json:"-"`
}

// Pronóstico de demanda: se acepta pero el asignador no lo usa todavía.
type DemandForecast struct {
	StationID       string    `json:"station_id"`
	HourTS          time.Time `json:"hour_ts"`
	PredictedDemand float64   `json:"predicted_demand"`
}

type MoveRecommendation struct {
	FromStation string `json:"from_station"`
	ToStation   string `json:"to_station"`
	BikesToMove int    `json:"bikes_to_move"`
}

// RebalanceRequest is the validated form of a rebalance payload.
// MaxMoves is 0 when the caller did not send one.
type RebalanceRequest struct {
	Inventory []StationInventory
	Forecast  []DemandForecast
	MaxMoves  int
	// Coerced counts bikes cells that were not numeric and became 0.
	Coerced int
}

const (
	SourceGRPC  = "grpc"
	SourceQueue = "queue"
)

type Run struct {
	ID           string               `json:"run_id"`
	Source       string               `json:"source"`
	CreatedAt    time.Time            `json:"created_at"`
	StationCount int                  `json:"station_count"`
	MaxMoves     int                  `json:"max_moves"`
	MeanBikes    float64              `json:"mean_bikes"`
	TotalBikes   int                  `json:"total_bikes"`
	Moves        []MoveRecommendation `json:"recommendations"`
	// NumericIDs lists the station ids of Moves that were sent as numbers.
	NumericIDs map[string]bool `json:"-"`
}

func (r *Run) markNumeric(id string) {
	if r.NumericIDs == nil {
		r.NumericIDs = make(map[string]bool)
	}
	r.NumericIDs[id] = true
}

func numericIDs(inventory []StationInventory, moves []MoveRecommendation) map[string]bool {
	sent := make(map[string]bool)
	for _, s := range inventory {
		if s.Numeric {
			sent[s.StationID] = true
		}
	}
	var out map[string]bool
	for _, m := range moves {
		for _, id := range []string{m.FromStation, m.ToStation} {
			if sent[id] {
				if out == nil {
					out = make(map[string]bool)
				}
				out[id] = true
			}
		}
	}
	return out
}

// moveRecord is a move with station ids in the type they arrived in.
type moveRecord struct {
	FromStation any `json:"from_station"`
	ToStation   any `json:"to_station"`
	BikesToMove int `json:"bikes_to_move"`
}

func stationValue(id string, numeric map[string]bool) any {
	if numeric[id] {
		return json.Number(id)
	}
	return id
}

func moveRecords(moves []MoveRecommendation, numeric map[string]bool) []moveRecord {
	out := make([]moveRecord, 0, len(moves))
	for _, m := range moves {
		out = append(out, moveRecord{
			FromStation: stationValue(m.FromStation, numeric),
			ToStation:   stationValue(m.ToStation, numeric),
			BikesToMove: m.BikesToMove,
		})
	}
	return out
}
