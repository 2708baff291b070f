package assessments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/liamcoop/visarules/eligibility"
)

// PostgresStore implements Store backed by the assessments table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed assessment store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save inserts a new entry
func (s *PostgresStore) Save(ctx context.Context, e *Entry) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	result, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (id, catalog_key, total_points, status, score, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.CatalogKey, e.Result.TotalPoints, string(e.Decision.Status), e.Decision.Score, result, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, catalog_key, status, score, result, created_at
		FROM assessments
		WHERE id = $1
	`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the newest entries for a catalog
func (s *PostgresStore) List(ctx context.Context, catalogKey string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, catalog_key, status, score, result, created_at
		FROM assessments
		WHERE catalog_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, catalogKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessments: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e      Entry
		status string
		result []byte
	)
	err := row.Scan(&e.ID, &e.CatalogKey, &status, &e.Decision.Score, &result, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assessment: %w", err)
	}

	e.Decision.Status = eligibility.Status(status)
	if err := json.Unmarshal(result, &e.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessment %s: %w", e.ID, err)
	}
	return &e, nil
}
