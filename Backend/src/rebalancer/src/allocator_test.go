package main

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func inv(pairs ...any) []StationInventory {
	out := make([]StationInventory, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		var bikes float64
		switch v := pairs[i+1].(type) {
		case int:
			bikes = float64(v)
		case float64:
			bikes = v
		}
		out = append(out, StationInventory{StationID: pairs[i].(string), AvailableBikes: bikes})
	}
	return out
}

func TestAllocateScenarios(t *testing.T) {
	tests := []struct {
		name     string
		stations []StationInventory
		maxMoves int
		want     []MoveRecommendation
	}{
		{
			name:     "surplus station feeds two receivers",
			stations: inv("A", 5, "B", 25, "C", 10),
			maxMoves: 10,
			want: []MoveRecommendation{
				{FromStation: "B", ToStation: "A", BikesToMove: 8},
				{FromStation: "B", ToStation: "C", BikesToMove: 3},
			},
		},
		{
			name:     "balanced network",
			stations: inv("A", 10, "B", 10),
			maxMoves: 50,
			want:     []MoveRecommendation{},
		},
		{
			name:     "empty inventory",
			stations: nil,
			maxMoves: 50,
			want:     []MoveRecommendation{},
		},
		{
			name:     "cap bounds a single move",
			stations: inv("A", 0, "B", 100),
			maxMoves: 10,
			want:     []MoveRecommendation{{FromStation: "B", ToStation: "A", BikesToMove: 10}},
		},
		{
			name:     "receiver is served by the first donor only",
			stations: inv("D1", 12, "D2", 12, "R", 0),
			maxMoves: 50,
			// mean 8: D1 has 4 spare, R needs 8; D2 is never consulted for R
			want: []MoveRecommendation{{FromStation: "D1", ToStation: "R", BikesToMove: 4}},
		},
		{
			name:     "donor exhausted stops the pass",
			stations: inv("D", 14, "R1", 0, "R2", 4, "R3", 6),
			maxMoves: 50,
			// mean 6: D spare 8; R1 needs 6 -> 6, D left 2; R2 needs 2 -> 2, D gone; R3 at mean
			want: []MoveRecommendation{
				{FromStation: "D", ToStation: "R1", BikesToMove: 6},
				{FromStation: "D", ToStation: "R2", BikesToMove: 2},
			},
		},
		{
			name:     "fractional move truncated to zero keeps the donor",
			stations: inv("A", 9.0, "B", 10.5, "C", 11.0),
			maxMoves: 50,
			// mean 10.1666: A needs 1.1666 -> B spare .333 -> 0 skipped; C spare .833 never reached
			want: []MoveRecommendation{},
		},
		{
			name:     "donors consumed in input order",
			stations: inv("R1", 0, "D1", 20, "R2", 0, "D2", 20),
			maxMoves: 50,
			// mean 10: D1 gives 10 to R1 and leaves; D2 gives 10 to R2
			want: []MoveRecommendation{
				{FromStation: "D1", ToStation: "R1", BikesToMove: 10},
				{FromStation: "D2", ToStation: "R2", BikesToMove: 10},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(tt.stations, nil, tt.maxMoves)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAllocateIgnoresForecast(t *testing.T) {
	stations := inv("A", 5, "B", 25, "C", 10)
	forecast := []DemandForecast{
		{StationID: "A", PredictedDemand: 20},
		{StationID: "B", PredictedDemand: 5},
		{StationID: "C", PredictedDemand: 15},
	}
	require.Equal(t, Allocate(stations, nil, 10), Allocate(stations, forecast, 10))
}

func TestAllocateDoesNotMutateInput(t *testing.T) {
	stations := inv("A", 5, "B", 25, "C", 10)
	before := append([]StationInventory(nil), stations...)
	_ = Allocate(stations, nil, 10)
	require.Equal(t, before, stations)
}

func TestMeanBikes(t *testing.T) {
	require.Zero(t, MeanBikes(nil))
	require.InDelta(t, 13.333, MeanBikes(inv("A", 5, "B", 25, "C", 10)), 0.001)
}

func randomInventory(rng *rand.Rand, n int, fractional bool) []StationInventory {
	out := make([]StationInventory, n)
	for i := range out {
		bikes := float64(rng.Intn(60))
		if fractional {
			bikes += rng.Float64()
		}
		out[i] = StationInventory{StationID: string(rune('a'+i%26)) + string(rune('0'+i/26)), AvailableBikes: bikes}
	}
	return out
}

func TestAllocateProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		stations := randomInventory(rng, 1+rng.Intn(40), iter%2 == 1)
		maxMoves := 1 + rng.Intn(30)

		moves := Allocate(stations, nil, maxMoves)

		mean := MeanBikes(stations)
		var surplus, deficit float64
		for _, s := range stations {
			if e := s.AvailableBikes - mean; e > 0 {
				surplus += e
			} else {
				deficit -= e
			}
		}

		var moved int
		for _, m := range moves {
			require.Positive(t, m.BikesToMove)
			require.LessOrEqual(t, m.BikesToMove, maxMoves)
			require.NotEqual(t, m.FromStation, m.ToStation)
			moved += m.BikesToMove
		}
		require.LessOrEqual(t, float64(moved), surplus+1e-9)
		require.LessOrEqual(t, float64(moved), deficit+1e-9)
	}
}

func TestAllocateEqualInventoryIsEmpty(t *testing.T) {
	for _, bikes := range []float64{0, 3, 17, 0.1, 12.75} {
		stations := make([]StationInventory, 7)
		for i := range stations {
			stations[i] = StationInventory{StationID: string(rune('A' + i)), AvailableBikes: bikes}
		}
		require.Empty(t, Allocate(stations, nil, DefaultMaxMoves), "bikes=%v", bikes)
	}
}

func applyMoves(stations []StationInventory, moves []MoveRecommendation) []StationInventory {
	idx := make(map[string]int, len(stations))
	out := append([]StationInventory(nil), stations...)
	for i, s := range out {
		idx[s.StationID] = i
	}
	for _, m := range moves {
		out[idx[m.FromStation]].AvailableBikes -= float64(m.BikesToMove)
		out[idx[m.ToStation]].AvailableBikes += float64(m.BikesToMove)
	}
	return out
}

func spread(stations []StationInventory) float64 {
	mean := MeanBikes(stations)
	var total float64
	for _, s := range stations {
		total += math.Abs(s.AvailableBikes - mean)
	}
	return total
}

func TestRepeatedAllocationConverges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		stations := randomInventory(rng, 2+rng.Intn(20), false)
		prev := spread(stations)
		for round := 0; round < 1000; round++ {
			moves := Allocate(stations, nil, 5)
			if len(moves) == 0 {
				break
			}
			stations = applyMoves(stations, moves)
			cur := spread(stations)
			require.Less(t, cur, prev, "round %d did not reduce imbalance", round)
			prev = cur
		}
		require.Empty(t, Allocate(stations, nil, 5))
	}
}
