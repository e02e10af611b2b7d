package fleet

import (
	"fmt"
	"strconv"
	"time"

	"fleetgrid/internal/gridquery"
)

// Row value coercion. Driver behavior differs: integers arrive as int64,
// DECIMAL and (without parseTime) DATETIME as strings, floats as float64.

func rowString(row gridquery.Row, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func rowInt64(row gridquery.Row, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func rowFloat64(row gridquery.Row, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

var rowTimeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func rowTime(row gridquery.Row, key string) time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range rowTimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// assocPresent reports whether a LEFT JOINed association produced a row: its
// id column is non-NULL.
func assocPresent(row gridquery.Row, assoc string) bool {
	return row[assoc+gridquery.AssocColumnSep+"id"] != nil
}

func decodeAccount(row gridquery.Row, prefix string) *Account {
	if !assocPresent(row, prefix) {
		return nil
	}
	p := prefix + gridquery.AssocColumnSep
	return &Account{
		ID:    rowInt64(row, p+"id"),
		Login: rowString(row, p+"login"),
		Role:  rowString(row, p+"role"),
	}
}

func decodeOwner(row gridquery.Row) *Person {
	if !assocPresent(row, "owner") {
		return nil
	}
	p := "owner" + gridquery.AssocColumnSep
	return &Person{
		ID:           rowInt64(row, p+"id"),
		FullName:     rowString(row, p+"full_name"),
		Age:          rowInt64(row, p+"age"),
		License:      rowString(row, p+"license"),
		CreationTime: rowTime(row, p+"creation_time"),
	}
}

func decodeVehicle(row gridquery.Row) Vehicle {
	return Vehicle{
		ID:                rowInt64(row, "id"),
		Name:              rowString(row, "name"),
		Type:              rowString(row, "type"),
		FuelType:          rowString(row, "fuel_type"),
		EnginePower:       rowFloat64(row, "engine_power"),
		Capacity:          rowString(row, "capacity"),
		DistanceTravelled: rowInt64(row, "distance_travelled"),
		CreationTime:      rowTime(row, "creation_time"),
		Owner:             decodeOwner(row),
		Admin:             decodeAccount(row, "admin"),
	}
}

func decodePerson(row gridquery.Row) Person {
	return Person{
		ID:           rowInt64(row, "id"),
		FullName:     rowString(row, "full_name"),
		Age:          rowInt64(row, "age"),
		License:      rowString(row, "license"),
		CreationTime: rowTime(row, "creation_time"),
		Admin:        decodeAccount(row, "admin"),
	}
}
