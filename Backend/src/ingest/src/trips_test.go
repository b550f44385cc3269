package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const tripHeader = "ride_id,rideable_type,started_at,ended_at,start_station_name,start_station_id\n"

func writeTrips(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func hour(h int) time.Time { return time.Date(2024, 6, 1, h, 0, 0, 0, time.UTC) }

func TestLoadHourlyDemand(t *testing.T) {
	dir := t.TempDir()
	writeTrips(t, dir, "202406-citibike-tripdata_2.csv", tripHeader+
		`r4,classic_bike,2024-06-01 11:59:59.999,2024-06-01 12:10:00,"Broadway & W 58 St",6948.10`+"\n")
	writeTrips(t, dir, "202406-citibike-tripdata_1.csv", "\ufeff"+tripHeader+
		"r1,electric_bike,2024-06-01 10:05:00.123,2024-06-01 10:20:00,Pier 40,5696.03\n"+
		"r2,classic_bike,2024-06-01 10:55:10,2024-06-01 11:20:00,Pier 40,5696.03\n"+
		"r3,classic_bike,2024-06-01 11:00:00,2024-06-01 11:20:00,Pier 40,5696.03\n"+
		"r5,classic_bike,2024-06-01 10:30:00,2024-06-01 10:40:00,,\n")
	writeTrips(t, dir, "other.csv", tripHeader+"x,classic_bike,2024-06-01 10:00:00,,A,A\n")

	got, stats, err := LoadHourlyDemand(dir, "")
	require.NoError(t, err)
	require.Equal(t, LoadStats{Files: 2, Rows: 5, Skipped: 1}, stats)
	require.Equal(t, []HourlyDemand{
		{StationID: "5696.03", HourTS: hour(10), RideCount: 2},
		{StationID: "5696.03", HourTS: hour(11), RideCount: 1},
		{StationID: "6948.10", HourTS: hour(11), RideCount: 1},
	}, got)
}

func TestLoadHourlyDemandCustomPattern(t *testing.T) {
	dir := t.TempDir()
	writeTrips(t, dir, "june.csv", tripHeader+"x,classic_bike,2024-06-01T08:15:00Z,,A,A1\n")

	got, _, err := LoadHourlyDemand(dir, "*.csv")
	require.NoError(t, err)
	require.Equal(t, []HourlyDemand{{StationID: "A1", HourTS: hour(8), RideCount: 1}}, got)
}

func TestLoadHourlyDemandNoFiles(t *testing.T) {
	_, _, err := LoadHourlyDemand(t.TempDir(), "")
	require.ErrorIs(t, err, ErrNoTripFiles)
}

func TestLoadHourlyDemandMissingColumns(t *testing.T) {
	dir := t.TempDir()
	writeTrips(t, dir, "202406-citibike-tripdata_1.csv", "ride_id,start_station_id\nr1,A\n")
	_, _, err := LoadHourlyDemand(dir, "")
	require.ErrorIs(t, err, ErrTripSchema)
	require.Contains(t, err.Error(), `"started_at"`)

	dir = t.TempDir()
	writeTrips(t, dir, "202406-citibike-tripdata_1.csv", "ride_id,started_at\nr1,2024-06-01 10:00:00\n")
	_, _, err = LoadHourlyDemand(dir, "")
	require.ErrorIs(t, err, ErrTripSchema)
	require.Contains(t, err.Error(), `"start_station_id"`)
}

func TestLoadHourlyDemandBadTimestamp(t *testing.T) {
	dir := t.TempDir()
	p := writeTrips(t, dir, "202406-citibike-tripdata_1.csv", tripHeader+
		"r1,classic_bike,2024-06-01 10:00:00,,A,A1\n"+
		"r2,classic_bike,yesterday,,A,A1\n")
	_, _, err := LoadHourlyDemand(dir, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), p+":3")
	require.Contains(t, err.Error(), `"yesterday"`)
}

func TestParseStartedAt(t *testing.T) {
	for _, v := range []string{"2024-06-01 10:05:00", "2024-06-01 10:05:00.5", "2024-06-01T10:05:00", "2024-06-01T10:05:00Z", "2024-06-01 10:05"} {
		ts, err := parseStartedAt(v)
		require.NoError(t, err, v)
		require.Equal(t, hour(10), ts.Truncate(time.Hour), v)
	}
}
