package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/visarules/assessments"
	"github.com/liamcoop/visarules/catalogs"
	"github.com/liamcoop/visarules/eligibility"
	"github.com/liamcoop/visarules/internal/metrics"
	"github.com/liamcoop/visarules/registry"
	"github.com/liamcoop/visarules/rules"
)

type testServer struct {
	*Server
	store *rules.InMemoryRuleStore
	prom  *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := rules.NewInMemoryRuleStore()
	require.NoError(t, catalogs.Seed(ctx, store))

	reg, err := registry.NewRegistry(store, rules.NewInMemoryRulesCache(rules.DefaultCacheConfig()), nil)
	require.NoError(t, err)
	require.NoError(t, reg.LoadAll(ctx))

	prom := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(prom)
	s := &Server{
		ruleStore:    store,
		registry:     reg,
		engine:       rules.NewEngine(rules.WithRecorder(m)),
		assessments:  assessments.NewInMemoryStore(),
		metrics:      m,
		thresholds:   eligibility.DefaultThresholds(),
		maxBatch:     3,
		maxBodyBytes: 4096,
	}
	s.setupRoutes()
	return &testServer{Server: s, store: store, prom: prom}
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

var strongSkilledWorker = map[string]any{
	"age":                     30,
	"education_level":         "PhD",
	"work_experience_years":   7,
	"ielts_listening":         8.5,
	"ielts_speaking":          7.5,
	"ielts_reading":           7.0,
	"ielts_writing":           7.0,
	"settlement_funds":        30000,
	"family_size":             2,
	"has_job_offer":           true,
	"occupation_demand_level": "Critical",
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 3.0, body["catalogs_loaded"])
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/v1/evaluate", map[string]any{
		"catalog":   "skilled_worker",
		"applicant": strongSkilledWorker,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assessment := body["assessment"].(map[string]any)
	assert.Equal(t, 94.0, assessment["total_points"])
	assert.Equal(t, []any{}, assessment["mandatory_failures"])

	decision := body["decision"].(map[string]any)
	assert.Equal(t, "LIKELY_ELIGIBLE", decision["status"])

	features := body["features"].(map[string]any)
	assert.Equal(t, 25.0, features["points_education"])
	assert.Equal(t, []any{94.0, 0.0, 0.0, 12.0, 25.0, 24.0, 15.0, 18.0}, body["feature_vector"])
	assert.NotContains(t, body, "outcomes")

	// points_per_category keeps encounter order on the wire
	raw := rec.Body.String()
	assert.Less(t, bytes.Index([]byte(raw), []byte(`"Age"`)), bytes.Index([]byte(raw), []byte(`"Bonus"`)))
}

func TestEvaluateWithTrace(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/v1/evaluate?trace=true", map[string]any{
		"catalog":   "tourist",
		"applicant": map[string]any{"has_criminal_record": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	outcomes := body["outcomes"].([]any)
	assert.Len(t, outcomes, 10)
	assert.NotContains(t, body, "features")
	assert.NotContains(t, body, "feature_vector")

	decision := body["decision"].(map[string]any)
	assert.Equal(t, "INELIGIBLE", decision["status"])
	assert.Equal(t, 0.0, decision["score"])
}

func TestEvaluateStoresAssessment(t *testing.T) {
	s := newTestServer(t)

	_, body := do(t, s, http.MethodPost, "/api/v1/evaluate", map[string]any{
		"catalog":   "student",
		"applicant": map[string]any{"financial_coverage": "< 100%"},
	})
	id := body["id"].(string)

	rec, stored := do(t, s, http.MethodGet, "/api/v1/assessments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "student", stored["catalog"])
	result := stored["result"].(map[string]any)
	assert.Equal(t, 0.0, result["total_points"])
}

func TestEvaluateErrors(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name   string
		body   any
		status int
	}{
		{"malformed body", `{"catalog":`, http.StatusBadRequest},
		{"missing catalog", map[string]any{"applicant": map[string]any{}}, http.StatusBadRequest},
		{"missing applicant", map[string]any{"catalog": "student"}, http.StatusBadRequest},
		{"unknown catalog", map[string]any{"catalog": "business", "applicant": map[string]any{}}, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, "/api/v1/evaluate", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestEvaluateBatch(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/api/v1/evaluate/batch", map[string]any{
		"catalog": "skilled_worker",
		"applicants": []map[string]any{
			strongSkilledWorker,
			{},
			{"age": 30, "settlement_funds": 1000},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	results := body["results"].([]any)
	require.Len(t, results, 3)

	status := func(i int) string {
		return results[i].(map[string]any)["decision"].(map[string]any)["status"].(string)
	}
	assert.Equal(t, "LIKELY_ELIGIBLE", status(0))
	assert.Equal(t, "LIKELY_INELIGIBLE", status(1))
	assert.Equal(t, "INELIGIBLE", status(2))
}

func TestEvaluateBatchLimits(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/evaluate/batch", map[string]any{
		"catalog":    "tourist",
		"applicants": []map[string]any{{}, {}, {}, {}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/evaluate/batch", map[string]any{
		"catalog":    "tourist",
		"applicants": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssessmentErrors(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/api/v1/assessments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/assessments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCatalogs(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/api/v1/catalogs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := body["catalogs"].([]any)
	require.Len(t, list, 3)
	first := list[0].(map[string]any)
	assert.Equal(t, "skilled_worker", first["key"])
	assert.Equal(t, "Skilled Worker", first["name"])
	assert.Equal(t, 17.0, first["rule_count"])
}

func TestGetCatalog(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/api/v1/catalogs/student", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Student", body["name"])
	ruleList := body["rules"].([]any)
	require.Len(t, ruleList, 11)
	assert.Equal(t, "ST_LOA", ruleList[0].(map[string]any)["id"])
	assert.Len(t, body["derived"], 1)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/catalogs/business", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReloadCatalog(t *testing.T) {
	s := newTestServer(t)

	def := catalogs.Tourist()
	def.Rules = def.Rules[:6]
	require.NoError(t, s.store.PutCatalog(context.Background(), def))

	rec, body := do(t, s, http.MethodPost, "/api/v1/catalogs/tourist/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6.0, body["rule_count"])

	rec, _ = do(t, s, http.MethodPost, "/api/v1/catalogs/business/reload", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func reloadSeries(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	series := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "visarules_catalog_reloads_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := ""
			for _, l := range m.GetLabel() {
				labels += l.GetName() + "=" + l.GetValue() + ","
			}
			series[labels] = m.GetCounter().GetValue()
		}
	}
	return series
}

func TestReloadUnknownCatalogsShareOneSeries(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		rec, _ := do(t, s, http.MethodPost, "/api/v1/catalogs/bogus"+strconv.Itoa(i)+"/reload", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec, _ := do(t, s, http.MethodPost, "/api/v1/catalogs/student/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, map[string]float64{
		"catalog=unknown,result=error,":   5,
		"catalog=student,result=success,": 1,
	}, reloadSeries(t, s.prom))
}

func TestRequestBodyLimit(t *testing.T) {
	s := newTestServer(t)
	padding := strings.Repeat("x", 8192)

	testCases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"evaluate", "/api/v1/evaluate", map[string]any{
			"catalog":   "student",
			"applicant": map[string]any{"notes": padding},
		}},
		{"batch", "/api/v1/evaluate/batch", map[string]any{
			"catalog":    "student",
			"applicants": []map[string]any{{"notes": padding}},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			assert.Equal(t, "request body too large", body["error"])
		})
	}
}

func TestListAssessments(t *testing.T) {
	s := newTestServer(t)

	for _, key := range []string{"student", "student", "tourist"} {
		rec, _ := do(t, s, http.MethodPost, "/api/v1/evaluate", map[string]any{
			"catalog":   key,
			"applicant": map[string]any{"has_loa": true},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := do(t, s, http.MethodGet, "/api/v1/assessments?catalog=student", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "student", body["catalog"])
	list := body["assessments"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "student", list[0].(map[string]any)["catalog"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/assessments?catalog=student&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["assessments"], 1)

	rec, body = do(t, s, http.MethodGet, "/api/v1/assessments?catalog=skilled_worker", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["assessments"])
}

func TestListAssessmentsErrors(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name   string
		query  string
		status int
	}{
		{"missing catalog", "", http.StatusBadRequest},
		{"unknown catalog", "?catalog=business", http.StatusNotFound},
		{"non-numeric limit", "?catalog=student&limit=ten", http.StatusBadRequest},
		{"zero limit", "?catalog=student&limit=0", http.StatusBadRequest},
		{"limit too large", "?catalog=student&limit=101", http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodGet, "/api/v1/assessments"+tc.query, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetRule(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/api/v1/catalogs/student/rules/ST_LOA", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ST_LOA", body["id"])
	assert.Equal(t, "points", body["kind"])
	assert.Equal(t, "Academics", body["category"])
	assert.Equal(t, true, body["active"])

	rec, _ = do(t, s, http.MethodGet, "/api/v1/catalogs/student/rules/TR_FUNDS", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/catalogs/business/rules/ST_LOA", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCatalog(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodDelete, "/api/v1/catalogs/tourist", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/catalogs/tourist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/evaluate", map[string]any{
		"catalog":   "tourist",
		"applicant": map[string]any{},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the cached definition is gone too, so reload cannot resurrect it
	rec, _ = do(t, s, http.MethodPost, "/api/v1/catalogs/tourist/reload", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, body := do(t, s, http.MethodGet, "/api/v1/catalogs", nil)
	assert.Len(t, body["catalogs"], 2)

	rec, _ = do(t, s, http.MethodDelete, "/api/v1/catalogs/tourist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
