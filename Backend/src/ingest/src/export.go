package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const hourLayout = "2006-01-02 15:04:05"

// ForecastRow tiene la forma de una fila de demand_forecast del rebalanceador.
type ForecastRow struct {
	StationID       string  `json:"station_id"`
	HourTS          string  `json:"hour_ts"`
	PredictedDemand float64 `json:"predicted_demand"`
}

func toForecast(rows []HourlyDemand) []ForecastRow {
	out := make([]ForecastRow, 0, len(rows))
	for _, d := range rows {
		out = append(out, ForecastRow{
			StationID:       d.StationID,
			HourTS:          d.HourTS.UTC().Format(hourLayout),
			PredictedDemand: float64(d.RideCount),
		})
	}
	return out
}

// WriteForecast escribe el JSON completo en un temporal y lo renombra.
func WriteForecast(path string, rows []HourlyDemand) (int64, error) {
	body, err := json.MarshalIndent(toForecast(rows), "", "  ")
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}
