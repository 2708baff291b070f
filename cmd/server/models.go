package main

import (
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/visarules/assessments"
	"github.com/liamcoop/visarules/eligibility"
	"github.com/liamcoop/visarules/rules"
)

// API request and response models

// EvaluateRequest is the body of POST /api/v1/evaluate
type EvaluateRequest struct {
	Catalog   string       `json:"catalog" example:"skilled_worker"`
	Applicant rules.Record `json:"applicant"`
}

// EvaluateResponse is the result of a single evaluation
type EvaluateResponse struct {
	ID             uuid.UUID             `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Catalog        string                `json:"catalog" example:"skilled_worker"`
	Assessment     *rules.Assessment     `json:"assessment"`
	Decision       eligibility.Decision  `json:"decision"`
	Features       *eligibility.Features `json:"features,omitempty"`
	FeatureVector  []float64             `json:"feature_vector,omitempty"`
	Outcomes       []rules.RuleOutcome   `json:"outcomes,omitempty"`
	EvaluationTime string                `json:"evaluation_time" example:"85µs"`
}

// BatchEvaluateRequest is the body of POST /api/v1/evaluate/batch
type BatchEvaluateRequest struct {
	Catalog    string         `json:"catalog" example:"tourist"`
	Applicants []rules.Record `json:"applicants"`
}

// BatchResult is one entry of a batch evaluation, in request order
type BatchResult struct {
	Assessment *rules.Assessment    `json:"assessment"`
	Decision   eligibility.Decision `json:"decision"`
}

// BatchEvaluateResponse is the result of a batch evaluation
type BatchEvaluateResponse struct {
	Catalog        string        `json:"catalog"`
	Results        []BatchResult `json:"results"`
	EvaluationTime string        `json:"evaluation_time"`
}

// AssessmentsListResponse is the response of GET /api/v1/assessments
type AssessmentsListResponse struct {
	Catalog     string               `json:"catalog" example:"student"`
	Assessments []*assessments.Entry `json:"assessments"`
}

// CatalogResponse is one catalog in the listing
type CatalogResponse struct {
	Key       string `json:"key" example:"student"`
	Name      string `json:"name" example:"Student"`
	RuleCount int    `json:"rule_count" example:"11"`
}

// CatalogsListResponse is the response of GET /api/v1/catalogs
type CatalogsListResponse struct {
	Catalogs []CatalogResponse `json:"catalogs"`
}

// ReloadResponse is the response of a catalog reload
type ReloadResponse struct {
	Catalog    string    `json:"catalog"`
	RuleCount  int       `json:"rule_count"`
	ReloadedAt time.Time `json:"reloaded_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"catalog not found"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status" example:"healthy"`
	CatalogsLoaded int    `json:"catalogs_loaded" example:"3"`
	Error          string `json:"error,omitempty"`
}
