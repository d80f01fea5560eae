package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"searchgateway"
	"searchgateway/internal/logger"
	"searchgateway/internal/search"

	"github.com/gin-gonic/gin"
)

// stubSearch is a hand-rolled SearchService for handler tests.
type stubSearch struct {
	results  []searchgateway.QueryResult
	runErr   error
	ids      []string
	listErr  error
	status   searchgateway.ConnectionStatus
	gotSpecs []searchgateway.QuerySpec
	gotRange searchgateway.TimeRange
}

func (s *stubSearch) RunQueries(_ context.Context, specs []searchgateway.QuerySpec, rng searchgateway.TimeRange) ([]searchgateway.QueryResult, error) {
	s.gotSpecs = specs
	s.gotRange = rng
	return s.results, s.runErr
}

func (s *stubSearch) ListSavedSearchIDs(_ context.Context) ([]string, error) {
	return s.ids, s.listErr
}

func (s *stubSearch) TestConnection(_ context.Context) searchgateway.ConnectionStatus {
	return s.status
}

func newTestRouter(s SearchService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewHandler(s, logger.Nop()).InitRoutes()
}

func postQuery(t *testing.T, r *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestRunQueriesHandler_OK(t *testing.T) {
	stub := &stubSearch{
		results: []searchgateway.QueryResult{{
			RefID:    "A",
			RowCount: 1,
			Columns: []searchgateway.Column{
				{Name: "host", Type: searchgateway.ColumnTypeString, Values: []any{"a"}},
			},
		}},
	}
	r := newTestRouter(stub)

	w := postQuery(t, r, map[string]any{
		"queries": []map[string]any{{"refId": "A", "type": "adhoc", "query": `dataset="foo"`}},
		"range":   map[string]int64{"from": 100, "to": 200},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}

	var out struct {
		Results []searchgateway.QueryResult `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].RefID != "A" {
		t.Fatalf("unexpected results: %+v", out.Results)
	}
	if stub.gotRange.From != 100 || stub.gotRange.To != 200 {
		t.Errorf("range not forwarded: %+v", stub.gotRange)
	}
	if len(stub.gotSpecs) != 1 || stub.gotSpecs[0].Type != searchgateway.QueryTypeAdhoc {
		t.Errorf("specs not forwarded: %+v", stub.gotSpecs)
	}
}

func TestRunQueriesHandler_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &search.ValidationError{Message: "query is empty"}, want: http.StatusBadRequest},
		{name: "timeout", err: &search.TimeoutError{JobID: "j"}, want: http.StatusGatewayTimeout},
		{name: "auth", err: &search.AuthError{Err: context.DeadlineExceeded}, want: http.StatusBadGateway},
		{name: "fetch", err: &search.FetchError{StatusCode: 500, Message: "boom"}, want: http.StatusBadGateway},
		{name: "protocol", err: &search.ProtocolError{Message: "no job id"}, want: http.StatusBadGateway},
		{name: "other", err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubSearch{runErr: tc.err})
			w := postQuery(t, r, map[string]any{
				"queries": []map[string]any{{"type": "adhoc", "query": "x"}},
			})
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestRunQueriesHandler_BadBody(t *testing.T) {
	r := newTestRouter(&stubSearch{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader([]byte("{not json")))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", w.Code)
	}

	// Well-formed but empty: also a caller mistake.
	w = postQuery(t, r, map[string]any{"queries": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400 for empty batch", w.Code)
	}
}

func TestSavedSearchesHandler(t *testing.T) {
	r := newTestRouter(&stubSearch{ids: []string{"a", "b"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/saved-searches", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshaling response: %v", err)
	}
	if len(out.IDs) != 2 {
		t.Fatalf("ids=%v, want 2 entries", out.IDs)
	}
}

func TestSavedSearchesHandler_UpstreamFailure(t *testing.T) {
	r := newTestRouter(&stubSearch{listErr: &search.FetchError{StatusCode: 502, Message: "relay down"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/saved-searches", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502", w.Code)
	}
}

func TestTestConnectionHandler_AlwaysOK(t *testing.T) {
	r := newTestRouter(&stubSearch{status: searchgateway.ConnectionStatus{OK: false, Message: "auth failed"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/test-connection", nil)
	r.ServeHTTP(w, req)
	// A failed test is still a 200 with a structured status.
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	var status searchgateway.ConnectionStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshaling status: %v", err)
	}
	if status.OK || status.Message != "auth failed" {
		t.Fatalf("unexpected status: %+v", status)
	}
}
