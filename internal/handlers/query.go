package handlers

import (
	"errors"
	"net/http"

	"searchgateway/internal/models"
	"searchgateway/internal/search"

	"github.com/gin-gonic/gin"
)

// @Summary      Run search queries
// @Description  Runs one or more queries (ad hoc or saved search) against the remote search service and returns one columnar result per query. A single failing query fails the whole batch.
// @Tags         query
// @Accept       json
// @Produce      json
// @Param        request  body  models.QueryRequest  true  "Query specs and time range (epoch seconds)"
// @Success      200  {object}  models.QueryResponse
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /api/v1/query [post]
func (h *Handler) runQueries(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Queries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no queries supplied"})
		return
	}

	results, err := h.search.RunQueries(c.Request.Context(), req.Queries, req.Range)
	if err != nil {
		h.log.Errorw("query batch failed", "err", err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.QueryResponse{Results: results})
}

// @Summary      List saved searches
// @Description  Loads the saved search IDs available to the configured credentials, e.g. to populate a picker.
// @Tags         query
// @Produce      json
// @Success      200  {object}  map[string][]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/saved-searches [get]
func (h *Handler) savedSearches(c *gin.Context) {
	ids, err := h.search.ListSavedSearchIDs(c.Request.Context())
	if err != nil {
		h.log.Errorw("error loading saved search IDs", "err", err)
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"ids": ids})
}

// @Summary      Test the datasource connection
// @Description  Verifies the configured organization URL and credentials by listing saved searches. Always answers 200 with a structured status.
// @Tags         health
// @Produce      json
// @Success      200  {object}  searchgateway.ConnectionStatus
// @Router       /api/v1/test-connection [get]
func (h *Handler) testConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.search.TestConnection(c.Request.Context()))
}

// statusForError maps the search error taxonomy onto HTTP statuses:
// caller mistakes are 4xx, upstream trouble is a gateway problem.
func statusForError(err error) int {
	var validationErr *search.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}
	var timeoutErr *search.TimeoutError
	if errors.As(err, &timeoutErr) {
		return http.StatusGatewayTimeout
	}
	var authErr *search.AuthError
	var fetchErr *search.FetchError
	var protocolErr *search.ProtocolError
	if errors.As(err, &authErr) || errors.As(err, &fetchErr) || errors.As(err, &protocolErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
