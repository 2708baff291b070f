//go:build integration

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/visarules/catalogs"
	"github.com/liamcoop/visarules/internal/config"
	"github.com/liamcoop/visarules/rules"
)

// setupTestDB creates a PostgreSQL testcontainer, runs migrations and returns
// its connection string
func setupTestDB(t *testing.T) (*sql.DB, string) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { postgres.Terminate(ctx) })

	host, err := postgres.Host(ctx)
	require.NoError(t, err)
	port, err := postgres.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../../migrations/000001_initial_schema.up.sql")
	require.NoError(t, err, "failed to read migration file")
	_, err = db.Exec(string(migrationSQL))
	require.NoError(t, err, "failed to run migrations")

	return db, connStr
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

// TestEndToEnd_SeedEvaluateAndReload covers the full workflow against
// PostgreSQL: seed catalogs, evaluate, fetch the stored assessment, change a
// catalog and reload it.
func TestEndToEnd_SeedEvaluateAndReload(t *testing.T) {
	db, connStr := setupTestDB(t)
	ctx := context.Background()

	store := rules.NewPostgresRuleStore(db)
	require.NoError(t, catalogs.Seed(ctx, store))

	t.Setenv("DATABASE_URL", connStr)
	cfg, err := config.Load("")
	require.NoError(t, err)

	server, err := NewServer(ctx, cfg)
	require.NoError(t, err)
	defer server.Close()

	ts := httptest.NewServer(server)
	defer ts.Close()
	baseURL := ts.URL + "/api/v1"

	t.Log("Step 1: Evaluating a skilled worker...")
	resp := post(t, baseURL+"/evaluate", map[string]any{
		"catalog": "skilled_worker",
		"applicant": map[string]any{
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
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var evaluated EvaluateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&evaluated))
	assert.Equal(t, 94, evaluated.Assessment.TotalPoints)
	assert.Equal(t, "LIKELY_ELIGIBLE", string(evaluated.Decision.Status))

	t.Log("Step 2: Fetching the stored assessment...")
	getResp, err := http.Get(baseURL + "/assessments/" + evaluated.ID.String())
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var stored map[string]any
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&stored))
	assert.Equal(t, "skilled_worker", stored["catalog"])

	t.Log("Step 3: Deactivating a rule and reloading...")
	_, err = db.ExecContext(ctx, `UPDATE rules SET active = false WHERE catalog_key = 'tourist' AND id = 'TR_FLAG_NO_HOST'`)
	require.NoError(t, err)

	reloadResp := post(t, baseURL+"/catalogs/tourist/reload", nil)
	defer reloadResp.Body.Close()
	require.Equal(t, http.StatusOK, reloadResp.StatusCode)

	var reloaded ReloadResponse
	require.NoError(t, json.NewDecoder(reloadResp.Body).Decode(&reloaded))
	assert.Equal(t, 9, reloaded.RuleCount)

	t.Log("Step 4: Health check...")
	healthResp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	defer healthResp.Body.Close()
	assert.Equal(t, http.StatusOK, healthResp.StatusCode)
}
