package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	TableInventory = "current_inventory"
	TableForecast  = "demand_forecast"

	colStationID       = "station_id"
	colAvailableBikes  = "available_bikes"
	colBikesAvailable  = "bikes_available"
	colHourTS          = "hour_ts"
	colPredictedDemand = "predicted_demand"
	fieldMaxMoves      = "max_moves"
)

var ErrSchema = errors.New("schema error")

// SchemaError reports a payload that does not have the shape the allocator
// needs. Row is -1 when the problem concerns the whole table.
type SchemaError struct {
	Table    string
	Field    string
	Accepted []string
	Row      int
	msg      string
}

func (e *SchemaError) Error() string { return e.msg }

func (e *SchemaError) Unwrap() error { return ErrSchema }

func missingColumn(table string, accepted ...string) *SchemaError {
	msg := fmt.Sprintf("%s must include '%s'", table, accepted[0])
	if len(accepted) > 1 {
		quoted := make([]string, len(accepted))
		for i, a := range accepted {
			quoted[i] = "'" + a + "'"
		}
		msg = fmt.Sprintf("%s must include either %s", table, strings.Join(quoted, " or "))
	}
	return &SchemaError{Table: table, Field: accepted[0], Accepted: accepted, Row: -1, msg: msg}
}

// ParseRequest validates a loosely typed rebalance payload (decoded JSON or
// structpb.Struct.AsMap) into a RebalanceRequest.
func ParseRequest(payload map[string]any) (RebalanceRequest, error) {
	var req RebalanceRequest

	raw, ok := payload[TableInventory]
	if !ok || raw == nil {
		return req, &SchemaError{Table: TableInventory, Field: TableInventory, Row: -1,
			msg: fmt.Sprintf("request must include '%s'", TableInventory)}
	}
	rows, err := asTable(TableInventory, raw)
	if err != nil {
		return req, err
	}
	inv, coerced, err := ParseInventory(rows)
	if err != nil {
		return req, err
	}
	req.Inventory = inv
	req.Coerced = coerced

	if raw := payload[TableForecast]; raw != nil {
		rows, err := asTable(TableForecast, raw)
		if err != nil {
			return req, err
		}
		req.Forecast = ParseForecast(rows)
	}

	if raw := payload[fieldMaxMoves]; raw != nil {
		n, err := parseMaxMoves(raw)
		if err != nil {
			return req, err
		}
		if err := validateRecord(requestLimits{MaxMoves: &n}); err != nil {
			return req, err
		}
		req.MaxMoves = n
	}
	return req, nil
}

func asTable(table string, raw any) ([]map[string]any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, &SchemaError{Table: table, Field: table, Row: -1,
			msg: fmt.Sprintf("%s must be a list of records", table)}
	}
	rows := make([]map[string]any, 0, len(list))
	for i, item := range list {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, &SchemaError{Table: table, Field: table, Row: i,
				msg: fmt.Sprintf("%s row %d is not a record", table, i)}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseInventory normalizes inventory rows. A column counts as present when
// any row carries it; bikes_available is accepted as an alias of
// available_bikes. Non-numeric bikes values become 0 and are counted in the
// second return value.
func ParseInventory(rows []map[string]any) ([]StationInventory, int, error) {
	out := make([]StationInventory, 0, len(rows))
	if len(rows) == 0 {
		return out, 0, nil
	}

	cols := columns(rows)
	if !cols[colStationID] {
		return nil, 0, missingColumn(TableInventory, colStationID)
	}
	bikesCol := colAvailableBikes
	switch {
	case cols[colAvailableBikes]:
	case cols[colBikesAvailable]:
		bikesCol = colBikesAvailable
	default:
		return nil, 0, missingColumn(TableInventory, colAvailableBikes, colBikesAvailable)
	}

	coerced := 0
	for i, row := range rows {
		id, numeric, exact := stationID(row[colStationID])
		if !exact {
			return nil, 0, &SchemaError{Table: TableInventory, Field: colStationID, Row: i,
				msg: fmt.Sprintf("%s row %d: numeric '%s' %v is not exact as a number; send it as a string",
					TableInventory, i, colStationID, row[colStationID])}
		}
		bikes, clean := toNumber(row[bikesCol])
		if !clean {
			coerced++
		}
		out = append(out, StationInventory{StationID: id, AvailableBikes: bikes, Numeric: numeric})
	}
	if err := validateRecord(inventoryTable{Rows: out}); err != nil {
		return nil, 0, err
	}
	return out, coerced, nil
}

// ParseForecast is lenient: the forecast is passed through unused, so bad
// cells degrade to zero values instead of failing the call.
func ParseForecast(rows []map[string]any) []DemandForecast {
	out := make([]DemandForecast, 0, len(rows))
	for _, row := range rows {
		id, _, _ := stationID(row[colStationID])
		demand, _ := toNumber(row[colPredictedDemand])
		out = append(out, DemandForecast{
			StationID:       id,
			HourTS:          toTime(row[colHourTS]),
			PredictedDemand: demand,
		})
	}
	return out
}

func columns(rows []map[string]any) map[string]bool {
	cols := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			cols[k] = true
		}
	}
	return cols
}

// maxExactID bounds numeric ids: from 2^53 up, distinct integers share a float64.
const maxExactID = 1 << 53

// stationID renders an opaque identifier as a string. Numbers use their
// shortest decimal form so 7 and 7.0 both become "7". numeric reports a
// number cell; exact is false when a float64 id may stand for several ids.
func stationID(v any) (id string, numeric, exact bool) {
	switch x := v.(type) {
	case nil:
		return "", false, true
	case string:
		return x, false, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false, true
		}
		if math.Abs(x) >= maxExactID {
			return "", true, false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true, true
	case json.Number:
		return x.String(), true, true
	case int:
		return strconv.Itoa(x), true, true
	case int64:
		return strconv.FormatInt(x, 10), true, true
	case bool:
		return "", false, true
	default:
		return fmt.Sprint(x), false, true
	}
}

// toNumber coerces a cell to a finite float64. The bool reports whether the
// value was usable as-is; anything else becomes 0.
func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var hourLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func toTime(v any) time.Time {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range hourLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	case json.Number:
		if secs, err := x.Int64(); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return time.Unix(int64(x), 0).UTC()
		}
	}
	return time.Time{}
}

func maxMovesError() *SchemaError {
	return &SchemaError{Table: "request", Field: fieldMaxMoves, Row: -1,
		msg: fmt.Sprintf("%s must be a positive integer", fieldMaxMoves)}
}

// parseMaxMoves only converts the cell to an int; the range is checked by
// requestLimits.
func parseMaxMoves(v any) (int, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			f = float64(n)
			break
		}
		parsed, err := x.Float64()
		if err != nil {
			return 0, maxMovesError()
		}
		f = parsed
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, maxMovesError()
		}
		f = float64(n)
	default:
		return 0, maxMovesError()
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, maxMovesError()
	}
	return int(f), nil
}
