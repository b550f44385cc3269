package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrTripSchema  = errors.New("trip data schema")
	ErrNoTripFiles = errors.New("no trip files matched")
)

const (
	colStartedAt = "started_at"
	colStationID = "start_station_id"
)

// HourlyDemand es la cantidad de viajes iniciados en una estación durante una hora.
type HourlyDemand struct {
	StationID string
	HourTS    time.Time
	RideCount int
}

type LoadStats struct {
	Files   int
	Rows    int
	Skipped int
}

type bucketKey struct {
	station string
	hour    int64
}

var startedAtLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
}

func parseStartedAt(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	var err error
	for _, layout := range startedAtLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// LoadHourlyDemand reads every trip CSV in rawDir matching pattern, in lexical
// order, and counts rides per (start station, hour).
func LoadHourlyDemand(rawDir, pattern string) ([]HourlyDemand, LoadStats, error) {
	var stats LoadStats
	if pattern == "" {
		pattern = defaultPattern
	}
	files, err := filepath.Glob(filepath.Join(rawDir, pattern))
	if err != nil {
		return nil, stats, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrNoTripFiles, filepath.Join(rawDir, pattern))
	}
	sort.Strings(files)

	counts := make(map[bucketKey]int)
	for _, f := range files {
		if err := countFile(f, counts, &stats); err != nil {
			return nil, stats, err
		}
		stats.Files++
	}

	out := make([]HourlyDemand, 0, len(counts))
	for k, n := range counts {
		out = append(out, HourlyDemand{StationID: k.station, HourTS: time.Unix(k.hour, 0).UTC(), RideCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StationID != out[j].StationID {
			return out[i].StationID < out[j].StationID
		}
		return out[i].HourTS.Before(out[j].HourTS)
	})
	return out, stats, nil
}

func countFile(path string, counts map[bucketKey]int, stats *LoadStats) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%s: read header: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	tsIdx, ok := cols[colStartedAt]
	if !ok {
		return fmt.Errorf("%w: %s must include %q", ErrTripSchema, path, colStartedAt)
	}
	stIdx, ok := cols[colStationID]
	if !ok {
		return fmt.Errorf("%w: %s must include %q", ErrTripSchema, path, colStationID)
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		line, _ := r.FieldPos(0)
		stats.Rows++

		station := ""
		if stIdx < len(rec) {
			station = strings.TrimSpace(rec[stIdx])
		}
		raw := ""
		if tsIdx < len(rec) {
			raw = strings.TrimSpace(rec[tsIdx])
		}
		// filas sin estación u hora no forman grupo
		if station == "" || raw == "" {
			stats.Skipped++
			continue
		}
		ts, err := parseStartedAt(raw)
		if err != nil {
			return fmt.Errorf("%s:%d: parse %s %q: %w", path, line, colStartedAt, raw, err)
		}
		counts[bucketKey{station: station, hour: ts.Truncate(time.Hour).Unix()}]++
	}
}
