package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a new PostgreSQL-backed RuleStore
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

// PutCatalog upserts the catalog, its rules and derived fields in one transaction.
// Rules missing from def are deleted; positions follow def order.
func (s *PostgresRuleStore) PutCatalog(ctx context.Context, def *CatalogDefinition) error {
	if err := ValidateDefinition(def); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalogs (key, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (key) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
	`, def.Key, def.Name, now)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog: %w", err)
	}

	ids := make([]string, len(def.Rules))
	for i, r := range def.Rules {
		ids[i] = r.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rules (catalog_key, id, position, kind, category, description, expression, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			ON CONFLICT (catalog_key, id) DO UPDATE SET
				position = EXCLUDED.position,
				kind = EXCLUDED.kind,
				category = EXCLUDED.category,
				description = EXCLUDED.description,
				expression = EXCLUDED.expression,
				active = EXCLUDED.active,
				updated_at = EXCLUDED.updated_at
		`, def.Key, r.ID, i, string(r.Kind), r.Category, r.Description, r.Expression, r.Active, now)
		if err != nil {
			return fmt.Errorf("failed to upsert rule %s: %w", r.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM rules WHERE catalog_key = $1 AND NOT (id = ANY($2))
	`, def.Key, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to prune rules: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM derived_fields WHERE catalog_key = $1`, def.Key)
	if err != nil {
		return fmt.Errorf("failed to clear derived fields: %w", err)
	}
	for i, df := range def.Derived {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO derived_fields (catalog_key, name, position, expression)
			VALUES ($1, $2, $3, $4)
		`, def.Key, df.Name, i, df.Expression)
		if err != nil {
			return fmt.Errorf("failed to insert derived field %s: %w", df.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog %s: %w", def.Key, err)
	}
	return nil
}

// GetCatalog loads a catalog with its active rules ordered by position
func (s *PostgresRuleStore) GetCatalog(ctx context.Context, key string) (*CatalogDefinition, error) {
	def := &CatalogDefinition{Key: key}
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM catalogs WHERE key = $1
	`, key).Scan(&def.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog %s: %w", key, ErrCatalogNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	fieldRows, err := s.db.QueryContext(ctx, `
		SELECT name, expression
		FROM derived_fields
		WHERE catalog_key = $1
		ORDER BY position ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list derived fields: %w", err)
	}
	defer fieldRows.Close()

	for fieldRows.Next() {
		var df DerivedField
		if err := fieldRows.Scan(&df.Name, &df.Expression); err != nil {
			return nil, fmt.Errorf("failed to scan derived field: %w", err)
		}
		def.Derived = append(def.Derived, df)
	}
	if err := fieldRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating derived fields: %w", err)
	}

	ruleRows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, category, description, expression, active, created_at, updated_at
		FROM rules
		WHERE catalog_key = $1 AND active = true
		ORDER BY position ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		r, err := scanRule(ruleRows)
		if err != nil {
			return nil, err
		}
		def.Rules = append(def.Rules, r)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return def, nil
}

// GetRule retrieves a rule by catalog key and ID
func (s *PostgresRuleStore) GetRule(ctx context.Context, key, ruleID string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, category, description, expression, active, created_at, updated_at
		FROM rules
		WHERE catalog_key = $1 AND id = $2
	`, key, ruleID)

	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s in catalog %s: %w", ruleID, key, ErrRuleNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListCatalogs returns all catalogs with their active rule counts
func (s *PostgresRuleStore) ListCatalogs(ctx context.Context) ([]CatalogSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.key, c.name, c.updated_at, COUNT(r.id) FILTER (WHERE r.active)
		FROM catalogs c
		LEFT JOIN rules r ON r.catalog_key = c.key
		GROUP BY c.key, c.name, c.updated_at
		ORDER BY c.key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}
	defer rows.Close()

	summaries := []CatalogSummary{}
	for rows.Next() {
		var cs CatalogSummary
		if err := rows.Scan(&cs.Key, &cs.Name, &cs.UpdatedAt, &cs.RuleCount); err != nil {
			return nil, fmt.Errorf("failed to scan catalog: %w", err)
		}
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalogs: %w", err)
	}

	return summaries, nil
}

// DeleteCatalog removes a catalog; rules and derived fields cascade
func (s *PostgresRuleStore) DeleteCatalog(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM catalogs WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete catalog: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("catalog %s: %w", key, ErrCatalogNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var (
		r           Rule
		kind        string
		category    sql.NullString
		description sql.NullString
	)
	err := row.Scan(&r.ID, &kind, &category, &description, &r.Expression, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	r.Kind = Kind(kind)
	r.Category = category.String
	r.Description = description.String
	return &r, nil
}
