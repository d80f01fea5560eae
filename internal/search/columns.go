package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"searchgateway"
)

// timeField is the field the search backend reserves for event timestamps,
// carrying epoch seconds. Hosts expect it under the well-known "Time" name
// as an ISO-8601 string.
const (
	timeField      = "_time"
	timeColumnName = "Time"
)

// EventRecord is one decoded result row. Keys preserves the order the
// fields appeared in on the wire, which drives column ordering.
type EventRecord struct {
	Keys   []string
	Values map[string]any
}

// decodeEventRecord parses one NDJSON line into an EventRecord, keeping
// top-level key order.
func decodeEventRecord(line []byte) (*EventRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	rec := &EventRecord{Values: map[string]any{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		// Duplicate top-level keys are legal JSON; keep one column entry,
		// last value wins.
		if _, seen := rec.Values[key]; !seen {
			rec.Keys = append(rec.Keys, key)
		}
		rec.Values[key] = value
	}
	return rec, nil
}

// column accumulates one result column while records stream in.
type column struct {
	name     string
	typ      searchgateway.ColumnType
	resolved bool // type has been inferred from a non-null value
	values   []any
	min, max *float64
}

// ColumnBuilder merges heterogeneous per-event payloads into a single
// rectangular columnar table. Columns appear the first time their field
// does; rows predating a column are backfilled with absent markers so
// every column ends up with one value per record.
type ColumnBuilder struct {
	columns []*column
	byName  map[string]*column
	rows    int
}

func NewColumnBuilder() *ColumnBuilder {
	return &ColumnBuilder{byName: map[string]*column{}}
}

// AddRecord folds one event into the table, in the record's own key order.
func (b *ColumnBuilder) AddRecord(rec *EventRecord) {
	for _, key := range rec.Keys {
		raw := rec.Values[key]
		name := key
		value := raw
		if key == timeField {
			// _time is in seconds; hosts want the well-known Time column in
			// ISO format. Unconvertible values pass through under _time.
			if ok, iso := timeToISOString(raw); ok {
				name = timeColumnName
				value = iso
			}
		} else {
			value = flattenNestedValue(raw)
		}

		col, exists := b.byName[name]
		if !exists {
			col = &column{name: name}
			// Backfill rows that predate this column's first appearance.
			for i := 0; i < b.rows; i++ {
				col.values = append(col.values, nil)
			}
			b.byName[name] = col
			b.columns = append(b.columns, col)
		}

		col.values = append(col.values, value)

		// Infer the type from the raw decoded value, not the flattened
		// one, so objects and arrays come out as Other rather than String.
		if !col.resolved && raw != nil {
			col.typ = inferColumnType(key, raw)
			col.resolved = true
		}

		if n, ok := value.(float64); ok {
			col.trackMinMax(n)
		}
	}
	b.rows++
}

// RowCount returns the number of records folded in so far.
func (b *ColumnBuilder) RowCount() int {
	return b.rows
}

// Build finalizes the table, extending any column the later records never
// touched so all columns share the same length.
func (b *ColumnBuilder) Build() []searchgateway.Column {
	out := make([]searchgateway.Column, 0, len(b.columns))
	for _, col := range b.columns {
		for len(col.values) < b.rows {
			col.values = append(col.values, nil)
		}
		typ := col.typ
		if !col.resolved {
			typ = searchgateway.ColumnTypeUnknown
		}
		out = append(out, searchgateway.Column{
			Name:   col.name,
			Type:   typ,
			Values: col.values,
			Min:    col.min,
			Max:    col.max,
		})
	}
	return out
}

func (c *column) trackMinMax(n float64) {
	if c.min == nil || n < *c.min {
		v := n
		c.min = &v
	}
	if c.max == nil || n > *c.max {
		v := n
		c.max = &v
	}
}

// inferColumnType maps a decoded JSON value to a column type. The reserved
// time field is always a time column regardless of the value's JSON kind.
func inferColumnType(key string, value any) searchgateway.ColumnType {
	if key == timeField {
		return searchgateway.ColumnTypeTime
	}
	switch value.(type) {
	case float64:
		return searchgateway.ColumnTypeNumber
	case string:
		return searchgateway.ColumnTypeString
	case bool:
		return searchgateway.ColumnTypeBoolean
	default:
		return searchgateway.ColumnTypeOther // object or array
	}
}

// timeToISOString converts an epoch-seconds value (number or numeric
// string) to an ISO-8601 millisecond-precision timestamp string.
func timeToISOString(value any) (bool, string) {
	var seconds float64
	switch v := value.(type) {
	case float64:
		seconds = v
	case string:
		s, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false, ""
		}
		seconds = s
	default:
		return false, "" // unexpected kind, pass through as-is
	}
	wholeSec := int64(seconds)
	nanoSec := int64(math.Round((seconds-float64(wholeSec))*1e6)) * 1000 // microsecond precision
	return true, time.Unix(wholeSec, nanoSec).UTC().Format("2006-01-02T15:04:05.000Z")
}

// flattenNestedValue serializes objects and arrays to a JSON string.
// Tabular consumers have no use for nested structure in a cell.
func flattenNestedValue(value any) any {
	switch value.(type) {
	case map[string]any, []any:
		if b, err := json.Marshal(value); err == nil {
			return string(b)
		}
	}
	return value
}
