package models

import "searchgateway"

// QueryRequest is the body of a batch query call: one or more query specs
// plus the time range from the caller's time picker.
type QueryRequest struct {
	Queries []searchgateway.QuerySpec `json:"queries"`
	Range   searchgateway.TimeRange   `json:"range"`
}

// QueryResponse carries one result per submitted spec, order-preserving.
type QueryResponse struct {
	Results []searchgateway.QueryResult `json:"results"`
}
