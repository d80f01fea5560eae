package search

import (
	"reflect"
	"testing"

	"searchgateway"
)

func mustDecodeRecord(t *testing.T, line string) *EventRecord {
	t.Helper()
	rec, err := decodeEventRecord([]byte(line))
	if err != nil {
		t.Fatalf("decodeEventRecord(%q): %v", line, err)
	}
	return rec
}

func TestDecodeEventRecord_PreservesKeyOrder(t *testing.T) {
	t.Parallel()

	rec := mustDecodeRecord(t, `{"zebra":1,"apple":"a","mango":true}`)
	want := []string{"zebra", "apple", "mango"}
	if !reflect.DeepEqual(rec.Keys, want) {
		t.Fatalf("keys=%v, want %v", rec.Keys, want)
	}
	if rec.Values["zebra"] != float64(1) || rec.Values["apple"] != "a" || rec.Values["mango"] != true {
		t.Fatalf("unexpected values: %v", rec.Values)
	}
}

func TestDecodeEventRecord_RejectsNonObject(t *testing.T) {
	t.Parallel()

	if _, err := decodeEventRecord([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error for a non-object line")
	}
}

func TestColumnBuilder_RectangularWithLateColumn(t *testing.T) {
	t.Parallel()

	b := NewColumnBuilder()
	lines := []string{
		`{"host":"a"}`,
		`{"host":"b"}`,
		`{"host":"c","level":"warn"}`,
		`{"host":"d","level":"error"}`,
		`{"host":"e","level":"info"}`,
	}
	for _, line := range lines {
		b.AddRecord(mustDecodeRecord(t, line))
	}

	cols := b.Build()
	if len(cols) != 2 {
		t.Fatalf("columns=%d, want 2", len(cols))
	}
	for _, col := range cols {
		if len(col.Values) != 5 {
			t.Errorf("column %q has %d values, want 5", col.Name, len(col.Values))
		}
	}

	level := cols[1]
	if level.Name != "level" {
		t.Fatalf("second column is %q, want level", level.Name)
	}
	// A key first seen at the 3rd of 5 records: 2 leading absent markers.
	if level.Values[0] != nil || level.Values[1] != nil {
		t.Errorf("expected 2 leading absent markers, got %v", level.Values[:2])
	}
	if level.Values[2] != "warn" || level.Values[3] != "error" || level.Values[4] != "info" {
		t.Errorf("unexpected level values: %v", level.Values)
	}
}

func TestColumnBuilder_TrailingSparseColumnExtendedOnBuild(t *testing.T) {
	t.Parallel()

	b := NewColumnBuilder()
	b.AddRecord(mustDecodeRecord(t, `{"host":"a","level":"warn"}`))
	b.AddRecord(mustDecodeRecord(t, `{"host":"b"}`))
	b.AddRecord(mustDecodeRecord(t, `{"host":"c"}`))

	cols := b.Build()
	for _, col := range cols {
		if len(col.Values) != 3 {
			t.Fatalf("column %q has %d values, want 3", col.Name, len(col.Values))
		}
	}
	if cols[1].Values[1] != nil || cols[1].Values[2] != nil {
		t.Errorf("expected trailing absent markers, got %v", cols[1].Values)
	}
}

func TestColumnBuilder_TimeFieldDerivation(t *testing.T) {
	t.Parallel()

	b := NewColumnBuilder()
	b.AddRecord(mustDecodeRecord(t, `{"_time":1700000000,"msg":"hi"}`))
	b.AddRecord(mustDecodeRecord(t, `{"_time":"1700000060.5","msg":"there"}`))

	cols := b.Build()
	timeCol := cols[0]
	if timeCol.Name != timeColumnName {
		t.Fatalf("first column is %q, want %q", timeCol.Name, timeColumnName)
	}
	if timeCol.Type != searchgateway.ColumnTypeTime {
		t.Fatalf("time column type=%q, want %q", timeCol.Type, searchgateway.ColumnTypeTime)
	}
	if timeCol.Values[0] != "2023-11-14T22:13:20.000Z" {
		t.Errorf("derived timestamp=%v, want 2023-11-14T22:13:20.000Z", timeCol.Values[0])
	}
	if timeCol.Values[1] != "2023-11-14T22:14:20.500Z" {
		t.Errorf("derived timestamp from string=%v, want 2023-11-14T22:14:20.500Z", timeCol.Values[1])
	}
}

func TestColumnBuilder_TypeInference(t *testing.T) {
	t.Parallel()

	b := NewColumnBuilder()
	b.AddRecord(mustDecodeRecord(t, `{"n":null,"s":null}`))
	b.AddRecord(mustDecodeRecord(t, `{"n":3,"s":"x","flag":true,"nested":{"a":1}}`))
	// Later kinds must not flip an already-resolved type.
	b.AddRecord(mustDecodeRecord(t, `{"n":"not-a-number","s":7,"flag":false,"nested":[1,2]}`))

	byName := map[string]searchgateway.Column{}
	for _, col := range b.Build() {
		byName[col.Name] = col
	}

	if got := byName["n"].Type; got != searchgateway.ColumnTypeNumber {
		t.Errorf("n type=%q, want number", got)
	}
	if got := byName["s"].Type; got != searchgateway.ColumnTypeString {
		t.Errorf("s type=%q, want string", got)
	}
	if got := byName["flag"].Type; got != searchgateway.ColumnTypeBoolean {
		t.Errorf("flag type=%q, want boolean", got)
	}
	if got := byName["nested"].Type; got != searchgateway.ColumnTypeOther {
		t.Errorf("nested type=%q, want other", got)
	}
	// Nested values are flattened to their JSON serialization.
	if got := byName["nested"].Values[1]; got != `{"a":1}` {
		t.Errorf("nested value=%v, want flattened JSON string", got)
	}
}

func TestColumnBuilder_DuplicateKeysStayRectangular(t *testing.T) {
	t.Parallel()

	// Duplicate top-level keys are legal JSON; the decoder keeps one entry
	// with the last value, so one record still contributes one cell.
	rec := mustDecodeRecord(t, `{"a":1,"a":2,"b":"x"}`)
	if want := []string{"a", "b"}; !reflect.DeepEqual(rec.Keys, want) {
		t.Fatalf("keys=%v, want %v", rec.Keys, want)
	}
	if rec.Values["a"] != float64(2) {
		t.Fatalf("a=%v, want last value 2", rec.Values["a"])
	}

	b := NewColumnBuilder()
	b.AddRecord(rec)
	b.AddRecord(mustDecodeRecord(t, `{"a":3,"b":"y"}`))

	if b.RowCount() != 2 {
		t.Fatalf("rows=%d, want 2", b.RowCount())
	}
	for _, col := range b.Build() {
		if len(col.Values) != 2 {
			t.Errorf("column %q has %d values, want 2", col.Name, len(col.Values))
		}
	}
}

func TestColumnBuilder_NeverNonNullStaysUnknown(t *testing.T) {
	t.Parallel()

	b := NewColumnBuilder()
	b.AddRecord(mustDecodeRecord(t, `{"ghost":null}`))
	b.AddRecord(mustDecodeRecord(t, `{"ghost":null}`))

	cols := b.Build()
	if cols[0].Type != searchgateway.ColumnTypeUnknown {
		t.Fatalf("ghost type=%q, want unknown", cols[0].Type)
	}
}

func TestColumnBuilder_NumericMinMax(t *testing.T) {
	t.Parallel()

	b := NewColumnBuilder()
	for _, line := range []string{`{"v":5}`, `{"v":-3}`, `{"v":12}`} {
		b.AddRecord(mustDecodeRecord(t, line))
	}

	col := b.Build()[0]
	if col.Min == nil || *col.Min != -3 {
		t.Errorf("min=%v, want -3", col.Min)
	}
	if col.Max == nil || *col.Max != 12 {
		t.Errorf("max=%v, want 12", col.Max)
	}
}
