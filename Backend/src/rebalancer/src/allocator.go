package main

import "math"

// DefaultMaxMoves caps the bikes moved by a single donor→receiver pairing.
const DefaultMaxMoves = 50

type stationExcess struct {
	id     string
	excess float64
}

// Allocate moves bikes from stations above the network mean (donors) to
// stations below it (receivers).
//
// Receivers are visited in input order and each one is served by the first
// remaining donor only, even when that donor cannot cover the whole deficit.
// A donor leaves the queue once its remaining excess drops to zero or below,
// and the pass stops as soon as no donor is left. Bikes per move are
// min(donor excess, receiver deficit, maxMoves) truncated toward zero.
//
// The forecast is accepted for interface stability and is not used.
func Allocate(inventory []StationInventory, forecast []DemandForecast, maxMoves int) []MoveRecommendation {
	out := []MoveRecommendation{}
	if len(inventory) == 0 {
		return out
	}
	mean := MeanBikes(inventory)

	var donors, receivers []stationExcess
	for _, s := range inventory {
		excess := s.AvailableBikes - mean
		switch {
		case excess > 0:
			donors = append(donors, stationExcess{id: s.StationID, excess: excess})
		case excess < 0:
			receivers = append(receivers, stationExcess{id: s.StationID, excess: excess})
		}
	}

	for _, r := range receivers {
		if len(donors) == 0 {
			break
		}
		d := &donors[0]
		need := -r.excess
		bikes := int(math.Min(math.Min(d.excess, need), float64(maxMoves)))
		if bikes <= 0 {
			continue
		}
		out = append(out, MoveRecommendation{
			FromStation: d.id,
			ToStation:   r.id,
			BikesToMove: bikes,
		})
		d.excess -= float64(bikes)
		if d.excess <= 0 {
			donors = donors[1:]
		}
	}
	return out
}

// MeanBikes returns the average inventory, or 0 for an empty table.
func MeanBikes(inventory []StationInventory) float64 {
	if len(inventory) == 0 {
		return 0
	}
	var sum float64
	for _, s := range inventory {
		sum += s.AvailableBikes
	}
	return sum / float64(len(inventory))
}
