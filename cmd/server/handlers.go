package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/liamcoop/visarules/assessments"
	"github.com/liamcoop/visarules/catalogs"
	"github.com/liamcoop/visarules/eligibility"
	"github.com/liamcoop/visarules/internal/logger"
	"github.com/liamcoop/visarules/internal/metrics"
	"github.com/liamcoop/visarules/rules"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", CatalogsLoaded: len(s.registry.List())}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status, resp.Error = "unhealthy", err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			resp.Status, resp.Error = "unhealthy", err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.Catalog == "" {
		respondError(w, http.StatusBadRequest, "catalog is required", nil)
		return
	}
	if req.Applicant == nil {
		respondError(w, http.StatusBadRequest, "applicant is required", nil)
		return
	}

	catalog, err := s.registry.Get(req.Catalog)
	if err != nil {
		respondError(w, http.StatusNotFound, "catalog not found", err)
		return
	}

	start := time.Now()
	assessment, outcomes := s.engine.EvaluateDetailed(r.Context(), req.Applicant, catalog)
	elapsed := time.Since(start)

	decision := eligibility.Classify(assessment, s.thresholds)
	s.metrics.IncrementDecision(catalog.Key(), string(decision.Status))

	entry := assessments.NewEntry(catalog.Key(), assessment, decision)
	if err := s.assessments.Save(r.Context(), entry); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store assessment", err)
		return
	}

	resp := EvaluateResponse{
		ID:             entry.ID,
		Catalog:        catalog.Key(),
		Assessment:     assessment,
		Decision:       decision,
		EvaluationTime: elapsed.String(),
	}
	if catalog.Key() == catalogs.KeySkilledWorker {
		features := eligibility.ExtractFeatures(assessment)
		resp.Features = &features
		resp.FeatureVector = features.Vector()
	}
	if trace, _ := strconv.ParseBool(r.URL.Query().Get("trace")); trace {
		resp.Outcomes = outcomes
	}

	respondJSON(w, http.StatusOK, resp)
}

// Batch evaluation handler. Batch results are not stored.
func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchEvaluateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.Catalog == "" {
		respondError(w, http.StatusBadRequest, "catalog is required", nil)
		return
	}
	if len(req.Applicants) == 0 {
		respondError(w, http.StatusBadRequest, "applicants are required", nil)
		return
	}
	if len(req.Applicants) > s.maxBatch {
		respondError(w, http.StatusBadRequest, "too many applicants in batch, max "+strconv.Itoa(s.maxBatch), nil)
		return
	}

	catalog, err := s.registry.Get(req.Catalog)
	if err != nil {
		respondError(w, http.StatusNotFound, "catalog not found", err)
		return
	}

	start := time.Now()
	results, err := s.engine.EvaluateBatch(r.Context(), req.Applicants, catalog)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "batch evaluation cancelled", err)
		return
	}
	elapsed := time.Since(start)

	resp := BatchEvaluateResponse{
		Catalog:        catalog.Key(),
		Results:        make([]BatchResult, len(results)),
		EvaluationTime: elapsed.String(),
	}
	for i, a := range results {
		decision := eligibility.Classify(a, s.thresholds)
		s.metrics.IncrementDecision(catalog.Key(), string(decision.Status))
		resp.Results[i] = BatchResult{Assessment: a, Decision: decision}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Get assessment handler
func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "assessmentId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid assessment id", err)
		return
	}

	entry, err := s.assessments.Get(r.Context(), id)
	if errors.Is(err, assessments.ErrNotFound) {
		respondError(w, http.StatusNotFound, "assessment not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get assessment", err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// List assessments handler
func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("catalog")
	if key == "" {
		respondError(w, http.StatusBadRequest, "catalog query parameter is required", nil)
		return
	}
	if _, err := s.registry.Get(key); err != nil {
		respondError(w, http.StatusNotFound, "catalog not found", err)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit), err)
			return
		}
		limit = n
	}

	entries, err := s.assessments.List(r.Context(), key, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list assessments", err)
		return
	}

	respondJSON(w, http.StatusOK, AssessmentsListResponse{Catalog: key, Assessments: entries})
}

// List catalogs handler
func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	resp := CatalogsListResponse{Catalogs: []CatalogResponse{}}
	for _, c := range s.registry.List() {
		resp.Catalogs = append(resp.Catalogs, CatalogResponse{
			Key:       c.Key(),
			Name:      c.Name(),
			RuleCount: c.Len(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get catalog handler
func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.registry.Get(chi.URLParam(r, "catalog"))
	if err != nil {
		respondError(w, http.StatusNotFound, "catalog not found", err)
		return
	}
	respondJSON(w, http.StatusOK, catalog.Definition())
}

// Delete catalog handler. The catalog is removed from the store and unloaded.
func (s *Server) handleDeleteCatalog(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "catalog")

	err := s.ruleStore.DeleteCatalog(r.Context(), key)
	if errors.Is(err, rules.ErrCatalogNotFound) {
		respondError(w, http.StatusNotFound, "catalog not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete catalog", err)
		return
	}

	// a stored catalog that failed to compile was never loaded
	if err := s.registry.Remove(r.Context(), key); err != nil && !errors.Is(err, rules.ErrCatalogNotFound) {
		respondError(w, http.StatusInternalServerError, "failed to unload catalog", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get rule handler. Reads the stored rule, including inactive ones.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "catalog")
	ruleID := chi.URLParam(r, "ruleId")

	rule, err := s.ruleStore.GetRule(r.Context(), key, ruleID)
	if errors.Is(err, rules.ErrCatalogNotFound) || errors.Is(err, rules.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Reload catalog handler
func (s *Server) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "catalog")

	catalog, err := s.registry.Reload(r.Context(), key)
	if errors.Is(err, rules.ErrCatalogNotFound) {
		s.metrics.IncrementReload(metrics.UnknownCatalog, err)
		respondError(w, http.StatusNotFound, "catalog not found", err)
		return
	}
	s.metrics.IncrementReload(key, err)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reload catalog", err)
		return
	}

	respondJSON(w, http.StatusOK, ReloadResponse{
		Catalog:    catalog.Key(),
		RuleCount:  catalog.Len(),
		ReloadedAt: time.Now().UTC(),
	})
}

// Helper functions

// decodeBody decodes a JSON body of at most maxBodyBytes into dst. It writes
// the error response and returns false on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}

	logger.HTTPFailure(status, message, err)
	respondJSON(w, status, response)
}
