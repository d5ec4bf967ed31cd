// Package chi serves vector search, health and metrics over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/domain/search/result"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
	logpkg "github.com/kailas-cloud/docvec/internal/logger"
	healthuc "github.com/kailas-cloud/docvec/internal/usecase/health"
	searchuc "github.com/kailas-cloud/docvec/internal/usecase/search"
)

// maxBodyBytes bounds a search request body.
const maxBodyBytes = 1 << 20

// Searcher runs text searches.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) ([]result.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	search Searcher
	health HealthChecker
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{search: search, health: health, logger: logger}
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query     string `json:"query"`
	Strategy  string `json:"strategy,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Partition string `json:"partition,omitempty"`
}

// SearchResultItem is one hit: the document projection and its distance.
type SearchResultItem struct {
	ID              string   `json:"id"`
	Type            string   `json:"type,omitempty"`
	Title           string   `json:"title,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReleaseYear     int      `json:"release_year,omitempty"`
	Description     string   `json:"description,omitempty"`
	PartKey         string   `json:"partKey,omitempty"`
	SimilarityScore float64  `json:"similarityScore"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Items []SearchResultItem `json:"items"`
	Total int                `json:"total"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// an empty strategy lets the service pick its configured default
	var st strategy.Strategy
	if req.Strategy != "" {
		parsed, err := strategy.Parse(req.Strategy)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
			return
		}
		st = parsed
	}

	r = r.WithContext(logpkg.WithFields(r.Context(),
		zap.String("strategy", string(st)),
		zap.String("partition", req.Partition),
	))
	results, err := s.search.Search(r.Context(), searchuc.Request{
		Query:     req.Query,
		Strategy:  st,
		Limit:     req.Limit,
		Partition: req.Partition,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i := range results {
		items[i] = resultToItem(&results[i])
	}
	writeJSON(w, http.StatusOK, SearchResponse{Items: items, Total: len(items)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

func resultToItem(r *result.Result) SearchResultItem {
	d := r.Document()
	return SearchResultItem{
		ID:              d.ID,
		Type:            d.Type,
		Title:           d.Title,
		Rating:          d.Rating,
		ReleaseYear:     d.ReleaseYear,
		Description:     d.Description,
		PartKey:         d.PartKey,
		SimilarityScore: r.Score(),
	}
}
