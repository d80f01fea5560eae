package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"searchgateway/internal/logger"
	"searchgateway/internal/models"
)

// apiClient performs authenticated calls against the host relay. All paths
// are relative to the per-instance org base URL; the relay handles the
// actual transport to the remote API.
type apiClient struct {
	baseURL string
	client  *http.Client
	auth    *AuthCache
	log     *logger.Logger
}

func newAPIClient(settings *models.Settings, auth *AuthCache, client *http.Client, log *logger.Logger) *apiClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &apiClient{
		baseURL: strings.TrimRight(settings.CriblOrgBaseURL, "/"),
		client:  client,
		auth:    auth,
		log:     log,
	}
}

// jobHeader is the first NDJSON line of every query response.
type jobHeader struct {
	Job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"job"`
	IsFinished      bool `json:"isFinished"`
	TotalEventCount *int `json:"totalEventCount"`
}

// queryPage is one decoded page of a query response: the job header plus
// the result records that followed it.
type queryPage struct {
	Header jobHeader
	Events []*EventRecord
}

// fetchPage runs one GET against the query endpoint and decodes the NDJSON
// body. The caller supplies queryId / query+earliest+latest or jobId, plus
// offset and limit.
func (c *apiClient) fetchPage(ctx context.Context, params url.Values) (*queryPage, error) {
	body, err := c.get(ctx, "query", params)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(body), "\n")
	page := &queryPage{}
	for idx, line := range lines {
		if len(line) == 0 { // trailing newline yields a blank final line
			continue
		}
		if idx == 0 {
			if err := json.Unmarshal([]byte(line), &page.Header); err != nil {
				return nil, &ProtocolError{Message: fmt.Sprintf("malformed job header: %v", err)}
			}
			continue
		}
		rec, err := decodeEventRecord([]byte(line))
		if err != nil {
			return nil, &ProtocolError{Message: fmt.Sprintf("failed to parse json at line %d: %v", idx+1, err)}
		}
		page.Events = append(page.Events, rec)
	}
	return page, nil
}

// cancelJob asks the backend to stop a job we no longer intend to read.
func (c *apiClient) cancelJob(ctx context.Context, jobID string) error {
	_, err := c.post(ctx, "jobs/"+url.PathEscape(jobID)+"/cancel", []byte("{}"))
	return err
}

// listSavedSearches loads the saved search IDs available to the configured
// credentials.
func (c *apiClient) listSavedSearches(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "savedSearches", nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parsing saved searches: %w", err)
	}
	var ids []string
	for _, item := range data.Items {
		if id, ok := item["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// get issues an authenticated GET relative to the base URL.
func (c *apiClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating GET request: %w", err)
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	if err := c.addAuthorization(ctx, req); err != nil {
		return nil, err
	}
	c.log.Debugw("http GET", "url", req.URL.String())
	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET request failed: %w", err)
	}
	return readResponse(res)
}

// post issues an authenticated POST relative to the base URL.
func (c *apiClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.addAuthorization(ctx, req); err != nil {
		return nil, err
	}
	c.log.Debugw("http POST", "url", req.URL.String())
	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST request failed: %w", err)
	}
	return readResponse(res)
}

func (c *apiClient) addAuthorization(ctx context.Context, req *http.Request) error {
	header, err := c.auth.AuthorizationHeader(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", header)
	return nil
}

// readResponse drains the body and converts any non-200 status into a
// FetchError, unpacking the API's error payload when possible.
func readResponse(res *http.Response) ([]byte, error) {
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, &FetchError{
			StatusCode: res.StatusCode,
			Message:    errorMessageFromBody(body),
		}
	}
	return body, nil
}

// errorMessageFromBody pulls the most useful diagnostic out of an error
// response. The API normally answers with a JSON object carrying "status"
// and "message"; the message itself is often a serialized error object with
// name/message and possibly extra fields. Falls back to the raw body.
func errorMessageFromBody(body []byte) string {
	var jsonBody map[string]any
	if err := json.Unmarshal(body, &jsonBody); err != nil {
		return string(body) // not JSON
	}
	message, ok := jsonBody["message"].(string)
	if !ok {
		return string(body) // not the shape we expected
	}
	if nested := parseSerializedError([]byte(message)); nested != "" {
		return nested
	}
	return message
}

// parseSerializedError unpacks a serialized error object with at least
// "name" and "message" fields, appending any extras. Returns "" when the
// payload is not that shape.
func parseSerializedError(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return "" // not JSON
	}
	name, okName := fields["name"].(string)
	message, okMessage := fields["message"].(string)
	if !okName || !okMessage {
		return ""
	}
	delete(fields, "name")
	delete(fields, "message")
	if len(fields) == 0 {
		return fmt.Sprintf("%s: %s", name, message)
	}
	var extras []string
	for key, value := range fields {
		extras = append(extras, fmt.Sprintf("%s: %v", key, value))
	}
	return fmt.Sprintf("%s: %s (%s)", name, message, strings.Join(extras, ", "))
}
