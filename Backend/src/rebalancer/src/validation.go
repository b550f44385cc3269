package main

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// inventoryTable is the typed form of current_inventory once columns are
// resolved and cells coerced.
type inventoryTable struct {
	Rows []StationInventory `json:"current_inventory" validate:"dive"`
}

// requestLimits holds the optional request fields. MaxMoves is nil when absent.
type requestLimits struct {
	MaxMoves *int `json:"max_moves" validate:"omitempty,min=1"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// los errores usan el nombre del campo en el payload
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate = v
	})
	return validate
}

// validateRecord runs the struct tags and reports the first failure as a
// *SchemaError.
func validateRecord(record any) error {
	err := getValidator().Struct(record)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return schemaErrorFrom(verrs[0])
	}
	return &SchemaError{Table: "request", Row: -1, msg: err.Error()}
}

var fieldErrorFormatters = map[string]func(row int) *SchemaError{
	colStationID: func(row int) *SchemaError {
		return &SchemaError{Table: TableInventory, Field: colStationID, Row: row,
			msg: fmt.Sprintf("%s row %d: '%s' is missing or empty", TableInventory, row, colStationID)}
	},
	fieldMaxMoves: func(int) *SchemaError { return maxMovesError() },
}

func schemaErrorFrom(fe validator.FieldError) *SchemaError {
	row := rowIndex(fe.Namespace())
	if format, ok := fieldErrorFormatters[fe.Field()]; ok {
		return format(row)
	}
	return &SchemaError{Table: "request", Field: fe.Field(), Row: row,
		msg: fmt.Sprintf("'%s' failed '%s' check", fe.Field(), fe.Tag())}
}

// rowIndex extracts the slice index from a namespace such as
// "inventoryTable.current_inventory[3].station_id".
func rowIndex(ns string) int {
	open := strings.LastIndexByte(ns, '[')
	end := strings.LastIndexByte(ns, ']')
	if open < 0 || end < open {
		return -1
	}
	n, err := strconv.Atoi(ns[open+1 : end])
	if err != nil {
		return -1
	}
	return n
}
