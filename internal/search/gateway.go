package search

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"searchgateway"
	"searchgateway/internal/logger"
	"searchgateway/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// savedSearchIDRe permits identifier characters and ${...} dashboard
// variables, in any combination. Anything else never reaches the network.
var savedSearchIDRe = regexp.MustCompile(`^([a-zA-Z0-9_]+|\$\{.+?\})+$`)

// Gateway orchestrates the auth cache, query executor and column builder
// per query, fanning out batches of queries in parallel.
type Gateway struct {
	settings *models.Settings
	auth     *AuthCache
	api      *apiClient
	log      *logger.Logger
}

func NewGateway(settings *models.Settings, client *http.Client, log *logger.Logger) *Gateway {
	auth := NewAuthCache(settings, client, log)
	return &Gateway{
		settings: settings,
		auth:     auth,
		api:      newAPIClient(settings, auth, client, log),
		log:      log,
	}
}

// RunQueries executes one query per spec concurrently and returns results
// in spec order. The first failing query cancels and fails the whole batch.
func (g *Gateway) RunQueries(ctx context.Context, specs []searchgateway.QuerySpec, rng searchgateway.TimeRange) ([]searchgateway.QueryResult, error) {
	// Work on a copy so assigning generated RefIDs doesn't write into the
	// caller's slice.
	specs = append([]searchgateway.QuerySpec(nil), specs...)
	for i := range specs {
		if specs[i].RefID == "" {
			specs[i].RefID = uuid.NewString()
		}
		if err := validateSpec(specs[i]); err != nil {
			return nil, err
		}
	}

	results := make([]searchgateway.QueryResult, len(specs))
	grp, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		grp.Go(func() error {
			g.log.Debugw("running query", "refId", spec.RefID, "type", spec.Type)
			ex := newExecutor(g.api, g.log, g.queryMaxWait())
			res, err := ex.run(ctx, spec, rng)
			if err != nil {
				return err
			}
			g.log.Infow("query finished", "refId", spec.RefID, "type", spec.Type, "rows", res.RowCount)
			results[i] = *res
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ListSavedSearchIDs loads the saved search IDs available to the configured
// credentials, e.g. to populate a picker.
func (g *Gateway) ListSavedSearchIDs(ctx context.Context) ([]string, error) {
	return g.api.listSavedSearches(ctx)
}

// TestConnection verifies the configuration end to end: the org URL must be
// well-formed, a credential must be obtainable, and the saved-search
// listing call must succeed. It always returns a structured status, never
// an error.
func (g *Gateway) TestConnection(ctx context.Context) searchgateway.ConnectionStatus {
	if err := g.settings.Validate(); err != nil {
		return searchgateway.ConnectionStatus{OK: false, Message: err.Error()}
	}
	if _, err := g.api.listSavedSearches(ctx); err != nil {
		return searchgateway.ConnectionStatus{OK: false, Message: err.Error()}
	}
	return searchgateway.ConnectionStatus{OK: true, Message: "Your Cribl Search data source is working properly."}
}

// queryMaxWait applies the configured query timeout, falling back to the
// executor default when unset.
func (g *Gateway) queryMaxWait() time.Duration {
	if g.settings.QueryTimeoutSec != nil && *g.settings.QueryTimeoutSec > 0 {
		return time.Duration(*g.settings.QueryTimeoutSec * float64(time.Second))
	}
	return defaultMaxWait
}

// validateSpec rejects malformed specs before anything hits the network.
func validateSpec(spec searchgateway.QuerySpec) error {
	switch spec.Type {
	case searchgateway.QueryTypeAdhoc:
		if strings.TrimSpace(spec.Query) == "" {
			return &ValidationError{Message: "query is empty"}
		}
	case searchgateway.QueryTypeSaved:
		if spec.SavedSearchID == "" {
			return &ValidationError{Message: "saved search ID is missing"}
		}
		if !savedSearchIDRe.MatchString(spec.SavedSearchID) {
			return &ValidationError{Message: fmt.Sprintf("invalid saved search ID: %q", spec.SavedSearchID)}
		}
	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported query type: %q", spec.Type)}
	}
	return nil
}
