package search

import (
	"fmt"
	"time"
)

// AuthError reports a failed credential acquisition: the login call failed,
// returned a non-2xx status, or carried no usable token.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a non-2xx response from the search API, or a job that
// ended in a state other than completed.
type FetchError struct {
	StatusCode int // 0 when the failure is not tied to an HTTP status
	Message    string
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// ProtocolError reports a response that violates the job-header contract,
// e.g. a header line with no job id.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Message }

// TimeoutError reports a job that did not finish within the wait budget.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s still not finished after %v", e.JobID, e.Elapsed)
}

// ValidationError reports malformed caller input, rejected before anything
// is sent to the network.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
