package searchgateway

// Query types accepted in a QuerySpec.
const (
	QueryTypeAdhoc = "adhoc"
	QueryTypeSaved = "saved"
)

// QuerySpec describes a single search to run: either an ad hoc query in the
// remote query language, or a reference to a saved search by ID. Exactly one
// of Query / SavedSearchID is meaningful, selected by Type.
type QuerySpec struct {
	RefID         string `json:"refId,omitempty"`         // opaque result identifier supplied by the caller
	Type          string `json:"type"`                    // "adhoc" or "saved"
	Query         string `json:"query,omitempty"`         // ad hoc query text, when Type is "adhoc"
	SavedSearchID string `json:"savedSearchId,omitempty"` // saved search ID, when Type is "saved"
	MaxResults    int    `json:"maxResults,omitempty"`    // optional per-query result cap
}

// TimeRange bounds an ad hoc query, in epoch seconds. Saved searches carry
// their own timeframe and ignore it.
type TimeRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// ColumnType is the inferred type of a result column.
type ColumnType string

const (
	ColumnTypeUnknown ColumnType = "unknown" // column never saw a non-null value
	ColumnTypeNumber  ColumnType = "number"
	ColumnTypeString  ColumnType = "string"
	ColumnTypeBoolean ColumnType = "boolean"
	ColumnTypeTime    ColumnType = "time"
	ColumnTypeOther   ColumnType = "other"
)

// Column is one typed, row-aligned column of a query result. Values holds
// one entry per result row; nil marks a row where the field was absent.
type Column struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Values []any      `json:"values"`
	Min    *float64   `json:"min,omitempty"` // running min, number columns only
	Max    *float64   `json:"max,omitempty"` // running max, number columns only
}

// QueryResult is the terminal artifact of one query run: a rectangular
// table of columns, all of length RowCount.
type QueryResult struct {
	RefID    string   `json:"refId"`
	Columns  []Column `json:"columns"`
	RowCount int      `json:"rowCount"`
}

// ConnectionStatus is the structured outcome of a connection test. It is
// always returned, never raised as an error.
type ConnectionStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
