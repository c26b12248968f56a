// Package chi exposes the index over HTTP: document writes, search,
// similarity and maintenance endpoints for the one entity type declared in
// the daemon configuration.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joshuajonah/xapian-haystack/internal/config"
	"github.com/joshuajonah/xapian-haystack/internal/domain"
	"github.com/joshuajonah/xapian-haystack/internal/domain/facet"
	"github.com/joshuajonah/xapian-haystack/internal/domain/schema"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/filter"
	"github.com/joshuajonah/xapian-haystack/internal/domain/search/result"
	logpkg "github.com/joshuajonah/xapian-haystack/internal/logger"
	"github.com/joshuajonah/xapian-haystack/internal/metrics"
	indexinguc "github.com/joshuajonah/xapian-haystack/internal/usecase/indexing"
	searchuc "github.com/joshuajonah/xapian-haystack/internal/usecase/search"
	"github.com/joshuajonah/xapian-haystack/internal/version"
)

// Server handles HTTP requests for haystackd.
type Server struct {
	indexing *indexinguc.Service
	search   *searchuc.Service

	model  filter.ModelRef
	schema schema.Schema
	pk     string

	maxResults      int
	defaultPageSize int

	ping func(r *http.Request) error

	logger *zap.Logger
}

// NewServer creates the HTTP server around the two usecase services. The
// index configuration fixes the entity type every document endpoint works
// on. ping, when non-nil, backs the health endpoint.
func NewServer(
	indexing *indexinguc.Service,
	search *searchuc.Service,
	idx config.IndexConfig,
	searchCfg config.SearchConfig,
	ping func(r *http.Request) error,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		indexing:        indexing,
		search:          search,
		model:           filter.ModelRef{Namespace: idx.Namespace, Name: idx.TypeName},
		schema:          BuildSchema(idx.Fields),
		pk:              idx.PKField,
		maxResults:      searchCfg.MaxResults,
		defaultPageSize: searchCfg.DefaultPageSize,
		ping:            ping,
		logger:          logger,
	}
}

// BuildSchema converts the declared field configuration into the schema the
// indexing service persists.
func BuildSchema(fields []config.FieldConfig) schema.Schema {
	decls := make([]schema.Declaration, 0, len(fields))
	for _, f := range fields {
		t := schema.FieldType(f.Type)
		if f.Type == "" {
			t = schema.Text
		}
		decls = append(decls, schema.Declaration{
			Name:        f.Name,
			Type:        t,
			Indexed:     true,
			Document:    f.Document,
			MultiValued: f.MultiValued,
		})
	}
	return schema.Build(decls)
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", s.handleUpdateDocuments)
		r.Delete("/documents/{pk}", s.handleDeleteDocument)
		r.Post("/clear", s.handleClear)
		r.Delete("/index", s.handleDeleteIndex)
		r.Get("/count", s.handleCount)
		r.Post("/search", s.handleSearch)
		r.Post("/similar", s.handleSimilar)
	})
}

// --- request/response bodies ---

type updateRequest struct {
	Documents []map[string]any `json:"documents"`
}

type updateResponse struct {
	Indexed int `json:"indexed"`
}

type clearRequest struct {
	Models []modelRefBody `json:"models,omitempty"`
}

type modelRefBody struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

type countResponse struct {
	Count int `json:"count"`
}

type dateFacetBody struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	GapBy     string `json:"gap_by"`
	GapAmount int    `json:"gap_amount"`
}

type searchRequest struct {
	Query           string                   `json:"query"`
	SortBy          []string                 `json:"sort_by,omitempty"`
	StartOffset     int                      `json:"start_offset,omitempty"`
	EndOffset       int                      `json:"end_offset,omitempty"`
	Highlight       bool                     `json:"highlight,omitempty"`
	Facets          []string                 `json:"facets,omitempty"`
	DateFacets      map[string]dateFacetBody `json:"date_facets,omitempty"`
	QueryFacets     map[string]string        `json:"query_facets,omitempty"`
	NarrowQueries   []string                 `json:"narrow_queries,omitempty"`
	Boost           map[string]float64       `json:"boost,omitempty"`
	IncludeSpelling bool                     `json:"include_spelling,omitempty"`
}

type similarRequest struct {
	PK              string `json:"pk"`
	AdditionalQuery string `json:"additional_query,omitempty"`
	searchPage
}

type searchPage struct {
	SortBy      []string `json:"sort_by,omitempty"`
	StartOffset int      `json:"start_offset,omitempty"`
	EndOffset   int      `json:"end_offset,omitempty"`
}

type resultBody struct {
	ID          string            `json:"id"`
	Namespace   string            `json:"namespace"`
	TypeName    string            `json:"type_name"`
	PK          string            `json:"pk"`
	Score       float64           `json:"score"`
	Fields      map[string]any    `json:"fields"`
	Highlighted map[string]string `json:"highlighted,omitempty"`
}

type fieldBucketBody struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

type dateBucketBody struct {
	Start string `json:"start"`
	Count int    `json:"count"`
}

type queryBucketBody struct {
	Query string `json:"query"`
	Hits  int    `json:"hits"`
}

type facetsBody struct {
	Fields  map[string][]fieldBucketBody `json:"fields,omitempty"`
	Dates   map[string][]dateBucketBody  `json:"dates,omitempty"`
	Queries map[string]queryBucketBody   `json:"queries,omitempty"`
}

type searchResponse struct {
	Results            []resultBody `json:"results"`
	Hits               int          `json:"hits"`
	Facets             *facetsBody  `json:"facets,omitempty"`
	SpellingSuggestion string       `json:"spelling_suggestion,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- handlers ---

func (s *Server) handleUpdateDocuments(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "documents must not be empty")
		return
	}

	entities := make([]indexinguc.Entity, 0, len(req.Documents))
	for i, doc := range req.Documents {
		pk, ok := doc[s.pk]
		if !ok || pk == nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Sprintf("document %d is missing the %q field", i, s.pk))
			return
		}
		entities = append(entities, indexinguc.Entity{
			PK:     fmt.Sprint(pk),
			Fields: doc,
		})
	}

	if err := s.indexing.Update(r.Context(), s.model, s.schema, entities); err != nil {
		metrics.IncBatchFailure()
		s.handleDomainError(w, r, err, "update documents")
		return
	}
	metrics.AddIndexed(len(entities))

	writeJSON(w, http.StatusOK, updateResponse{Indexed: len(entities)})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	pk := chi.URLParam(r, "pk")
	if pk == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "pk is required")
		return
	}
	if err := s.indexing.Remove(r.Context(), s.model, pk); err != nil {
		s.handleDomainError(w, r, err, "delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
	}
	models := make([]filter.ModelRef, 0, len(req.Models))
	for _, m := range req.Models {
		ref := filter.ModelRef{Namespace: m.Namespace, Name: m.Name}
		if ref != s.model {
			s.handleDomainError(w, r, fmt.Errorf("%w: %s", domain.ErrUnknownType, ref), "clear index")
			return
		}
		models = append(models, ref)
	}
	if err := s.indexing.Clear(r.Context(), models); err != nil {
		s.handleDomainError(w, r, err, "clear index")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.indexing.DeleteIndex(r.Context()); err != nil {
		s.handleDomainError(w, r, err, "delete index")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, countResponse{Count: s.indexing.DocumentCount(r.Context())})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if req.Query == "" {
		s.handleDomainError(w, r, domain.ErrEmptyQuery, "search")
		return
	}

	opts, err := s.toOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	start := time.Now()
	env, err := s.search.Search(r.Context(), req.Query, opts)
	if err != nil {
		s.handleDomainError(w, r, err, "search")
		return
	}
	metrics.ObserveSearch(time.Since(start))

	writeJSON(w, http.StatusOK, toSearchResponse(env))
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.PK == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "pk is required")
		return
	}

	opts := s.pageOptions(searchuc.Options{
		SortBy:      req.SortBy,
		StartOffset: req.StartOffset,
		EndOffset:   req.EndOffset,
	})

	start := time.Now()
	env, err := s.search.MoreLikeThis(r.Context(), s.model, req.PK, req.AdditionalQuery, opts)
	if err != nil {
		s.handleDomainError(w, r, err, "more like this")
		return
	}
	metrics.ObserveSearch(time.Since(start))

	writeJSON(w, http.StatusOK, toSearchResponse(env))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:  "unavailable",
				Version: version.Version,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version.Version})
}

// --- conversions ---

// timeLayouts accepted for date facet bounds, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseFacetTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

func (s *Server) toOptions(req searchRequest) (searchuc.Options, error) {
	opts := searchuc.Options{
		SortBy:          req.SortBy,
		StartOffset:     req.StartOffset,
		EndOffset:       req.EndOffset,
		Highlight:       req.Highlight,
		Facets:          req.Facets,
		QueryFacets:     req.QueryFacets,
		NarrowQueries:   req.NarrowQueries,
		Boost:           req.Boost,
		IncludeSpelling: req.IncludeSpelling,
	}
	if len(req.DateFacets) > 0 {
		opts.DateFacets = make(map[string]facet.DateOptions, len(req.DateFacets))
		for field, df := range req.DateFacets {
			start, err := parseFacetTime(df.Start)
			if err != nil {
				return searchuc.Options{}, fmt.Errorf("date facet %s: %w", field, err)
			}
			end, err := parseFacetTime(df.End)
			if err != nil {
				return searchuc.Options{}, fmt.Errorf("date facet %s: %w", field, err)
			}
			gap := df.GapAmount
			if gap <= 0 {
				gap = 1
			}
			opts.DateFacets[field] = facet.DateOptions{
				Start:     start,
				End:       end,
				GapBy:     facet.GapUnit(df.GapBy),
				GapAmount: gap,
			}
		}
	}
	return s.pageOptions(opts), nil
}

// pageOptions applies the configured paging bounds: an unbounded request
// gets the default page, and no page may exceed max_results.
func (s *Server) pageOptions(opts searchuc.Options) searchuc.Options {
	if opts.StartOffset < 0 {
		opts.StartOffset = 0
	}
	if opts.EndOffset <= 0 {
		opts.EndOffset = opts.StartOffset + s.defaultPageSize
	}
	if s.maxResults > 0 && opts.EndOffset-opts.StartOffset > s.maxResults {
		opts.EndOffset = opts.StartOffset + s.maxResults
	}
	return opts
}

func toSearchResponse(env searchuc.Envelope) searchResponse {
	resp := searchResponse{
		Results:            make([]resultBody, 0, len(env.Records)),
		Hits:               env.Hits,
		SpellingSuggestion: env.SpellingSuggestion,
	}
	for _, rec := range env.Records {
		resp.Results = append(resp.Results, toResultBody(rec))
	}
	if len(env.Facets.Fields) > 0 || len(env.Facets.Dates) > 0 || len(env.Facets.Queries) > 0 {
		resp.Facets = toFacetsBody(env.Facets)
	}
	return resp
}

func toResultBody(rec result.Record) resultBody {
	return resultBody{
		ID:          rec.ID(),
		Namespace:   rec.Namespace,
		TypeName:    rec.TypeName,
		PK:          rec.PK,
		Score:       rec.Score,
		Fields:      rec.Fields,
		Highlighted: rec.Highlighted,
	}
}

func toFacetsBody(counts facet.Counts) *facetsBody {
	body := &facetsBody{}
	if len(counts.Fields) > 0 {
		body.Fields = make(map[string][]fieldBucketBody, len(counts.Fields))
		for field, buckets := range counts.Fields {
			out := make([]fieldBucketBody, 0, len(buckets))
			for _, b := range buckets {
				out = append(out, fieldBucketBody{Value: b.Value, Count: b.Count})
			}
			body.Fields[field] = out
		}
	}
	if len(counts.Dates) > 0 {
		body.Dates = make(map[string][]dateBucketBody, len(counts.Dates))
		for field, buckets := range counts.Dates {
			out := make([]dateBucketBody, 0, len(buckets))
			for _, b := range buckets {
				out = append(out, dateBucketBody{Start: b.Label, Count: b.Count})
			}
			body.Dates[field] = out
		}
	}
	if len(counts.Queries) > 0 {
		body.Queries = make(map[string]queryBucketBody, len(counts.Queries))
		for name, b := range counts.Queries {
			body.Queries[name] = queryBucketBody{Query: b.Query, Hits: b.Hits}
		}
	}
	return body
}

// --- error handling ---

// errorHandler maps one error class to an HTTP response. Returns true when
// it handled err.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// sentinelHandler responds with the given status when err wraps sentinel.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err, sentinel))
		return true
	}
}

var domainErrorHandlers = []errorHandler{
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
	sentinelHandler(domain.ErrUnknownType, http.StatusNotFound, "unknown_type"),
	sentinelHandler(domain.ErrEncoding, http.StatusBadRequest, "bad_encoding"),
	sentinelHandler(domain.ErrQueryParse, http.StatusBadRequest, "bad_query"),
	sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, "empty_query"),
	sentinelHandler(domain.ErrSchemaMissing, http.StatusConflict, "schema_missing"),
	sentinelHandler(domain.ErrStorageOpen, http.StatusServiceUnavailable, "storage_unavailable"),
}

// handleDomainError logs err and writes the mapped response, defaulting to
// 500 for anything no handler claims.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logpkg.FromContext(r.Context()).Warn(msg, zap.Error(err))

	for _, h := range domainErrorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal_error", msg+" failed")
}

// safeDomainMessage returns the sentinel text rather than the full wrapped
// chain, which may carry storage paths or key names.
func safeDomainMessage(err, sentinel error) string {
	if err == nil {
		return ""
	}
	return sentinel.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
