package assessments

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/visarules/eligibility"
	"github.com/liamcoop/visarules/rules"
)

func sampleEntry() *Entry {
	result := &rules.Assessment{
		TotalPoints: 62,
		PointsPerCategory: rules.Breakdown{
			{Category: "Financials", Points: 30},
			{Category: "Purpose", Points: 20},
			{Category: "Home Ties", Points: 12},
		},
		MandatoryFailures: []rules.Finding{},
		WarningFlags:      []rules.Finding{{ID: "TR_FLAG_NO_HOST", Description: "No host or hotel bookings can be a risk factor."}},
	}
	return NewEntry("tourist", result, eligibility.Classify(result, eligibility.DefaultThresholds()))
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	e := sampleEntry()
	require.NoError(t, store.Save(ctx, e))
	assert.Error(t, store.Save(ctx, e), "duplicate ID should be rejected")

	got, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = store.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	older := sampleEntry()
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := sampleEntry()
	other := NewEntry("student", &rules.Assessment{}, eligibility.Decision{Status: eligibility.StatusLikelyIneligible})

	for _, e := range []*Entry{older, newer, other} {
		require.NoError(t, store.Save(ctx, e))
	}

	entries, err := store.List(ctx, "tourist", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.ID, entries[0].ID)
	assert.Equal(t, older.ID, entries[1].ID)

	entries, err = store.List(ctx, "tourist", 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPostgresStoreSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := sampleEntry()
	mock.ExpectExec("INSERT INTO assessments").
		WithArgs(e.ID, "tourist", 62, "BORDERLINE", 62, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresStore(db)
	require.NoError(t, store.Save(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := `{"total_points":62,"points_per_category":{"Financials":30,"Purpose":20,"Home Ties":12},"mandatory_failures":[],"warning_flags":[]}`

	mock.ExpectQuery("SELECT (.+) FROM assessments WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "catalog_key", "status", "score", "result", "created_at"}).
			AddRow(id.String(), "tourist", "BORDERLINE", 62, []byte(payload), created))

	store := NewPostgresStore(db)
	got, err := store.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, "tourist", got.CatalogKey)
	assert.Equal(t, eligibility.Decision{Status: eligibility.StatusBorderline, Score: 62}, got.Decision)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, rules.Breakdown{
		{Category: "Financials", Points: 30},
		{Category: "Purpose", Points: 20},
		{Category: "Home Ties", Points: 12},
	}, got.Result.PointsPerCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM assessments WHERE id").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = NewPostgresStore(db).Get(context.Background(), id)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "catalog_key", "status", "score", "result", "created_at"}).
		AddRow(uuid.NewString(), "student", "INELIGIBLE", 0, []byte(`{"total_points":40,"points_per_category":{},"mandatory_failures":[{"id":"ST_FAIL_MISREP","description":"History of visa misrepresentation."}],"warning_flags":[]}`), time.Now()).
		AddRow(uuid.NewString(), "student", "LIKELY_INELIGIBLE", 10, []byte(`{"total_points":10,"points_per_category":{},"mandatory_failures":[],"warning_flags":[]}`), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM assessments WHERE catalog_key").
		WithArgs("student", 100).
		WillReturnRows(rows)

	entries, err := NewPostgresStore(db).List(context.Background(), "student", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ST_FAIL_MISREP", entries[0].Result.MandatoryFailures[0].ID)
	assert.Equal(t, eligibility.StatusLikelyIneligible, entries[1].Decision.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
