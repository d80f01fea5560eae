package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"searchgateway"
	"searchgateway/internal/backoff"
	"searchgateway/internal/logger"
)

const (
	// maxResultsCap matches what the actual search UI imposes.
	maxResultsCap = 10000
	// queryPageSize is how many records each page request asks for.
	queryPageSize = 1000
	// defaultMaxWait bounds how long to poll an unfinished job.
	defaultMaxWait = 60 * time.Second
	// pollInitialDelay seeds the backoff between job polls.
	pollInitialDelay = 250 * time.Millisecond
)

// queryAPI is the slice of the relay client the executor needs.
type queryAPI interface {
	fetchPage(ctx context.Context, params url.Values) (*queryPage, error)
	cancelJob(ctx context.Context, jobID string) error
}

// executor drives the paginated, job-based query protocol for one query to
// completion, feeding each decoded record into a column builder.
type executor struct {
	api     queryAPI
	log     *logger.Logger
	maxWait time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

func newExecutor(api queryAPI, log *logger.Logger, maxWait time.Duration) *executor {
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &executor{
		api:     api,
		log:     log,
		maxWait: maxWait,
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// run executes one query. The spec is assumed valid; ad hoc query text is
// normalized here. Pages are fetched until the result cap is reached or all
// of the job's events have been read.
func (e *executor) run(ctx context.Context, spec searchgateway.QuerySpec, rng searchgateway.TimeRange) (*searchgateway.QueryResult, error) {
	params := url.Values{}
	if spec.Type == searchgateway.QueryTypeSaved {
		// Saved/scheduled searches carry their own pre-defined timeframe.
		params.Set("queryId", spec.SavedSearchID)
	} else {
		params.Set("query", NormalizeQuery(collapseToSingleLine(spec.Query)))
		params.Set("earliest", strconv.FormatInt(rng.From, 10))
		params.Set("latest", strconv.FormatInt(rng.To, 10))
	}

	resultCap := maxResultsCap
	if spec.MaxResults > 0 && spec.MaxResults < maxResultsCap {
		resultCap = spec.MaxResults
	}

	builder := NewColumnBuilder()
	eventCount := 0
	totalEventCount := -1
	started := e.now()
	nextDelay := backoff.New(pollInitialDelay)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		params.Set("offset", strconv.Itoa(eventCount))
		params.Set("limit", strconv.Itoa(queryPageSize))

		page, err := e.api.fetchPage(ctx, params)
		if err != nil {
			return nil, err
		}

		jobID := page.Header.Job.ID
		if jobID == "" {
			// Never expected per the protocol contract; bail rather than loop.
			return nil, &ProtocolError{Message: "response header line has no job id"}
		}

		// After the first response, address the job by id instead of the
		// original queryId. This pins our read to one result set even if a
		// scheduled run kicks off a new job for the same saved search, and
		// it's the handle we need for polling an unfinished job anyway.
		params = url.Values{}
		params.Set("jobId", jobID)

		// isFinished=false means there were no cached results and a new job
		// was started. Its totalEventCount isn't trustworthy yet; poll until
		// the job finishes, within the wait budget.
		if !page.Header.IsFinished {
			elapsed := e.now().Sub(started)
			if elapsed >= e.maxWait {
				e.log.Debugw("query wait budget exhausted, canceling job", "jobId", jobID)
				if cancelErr := e.api.cancelJob(ctx, jobID); cancelErr != nil {
					e.log.Warnw("failed to cancel job", "jobId", jobID, "err", cancelErr)
				}
				return nil, &TimeoutError{JobID: jobID, Elapsed: elapsed}
			}
			delay := nextDelay()
			e.log.Debugw("job not finished, delaying", "jobId", jobID, "delay", delay.String())
			if err := e.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		if status := page.Header.Job.Status; status != "" && status != "completed" {
			return nil, &FetchError{Message: fmt.Sprintf("job %s ended with status %s", jobID, status)}
		}

		// The job is finished, so totalEventCount is final now.
		if page.Header.TotalEventCount != nil {
			totalEventCount = *page.Header.TotalEventCount
		}

		for _, rec := range page.Events {
			if eventCount >= resultCap {
				break
			}
			builder.AddRecord(rec)
			eventCount++
		}

		e.log.Debugw("processed page", "jobId", jobID, "eventCount", eventCount, "totalEventCount", totalEventCount)
		if eventCount >= resultCap || (totalEventCount >= 0 && eventCount >= totalEventCount) {
			break
		}
	}

	return &searchgateway.QueryResult{
		RefID:    spec.RefID,
		Columns:  builder.Build(),
		RowCount: builder.RowCount(),
	}, nil
}

// sleepContext sleeps for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
