package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pid_tuner/internal/models"
)

type ParameterSQLite struct {
	db *sql.DB
}

func NewParameterSQLite(db *sql.DB) *ParameterSQLite {
	return &ParameterSQLite{db: db}
}

const (
	upsertParameterSQL = `
		INSERT INTO parameters (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`

	selectParametersSQL = `
		SELECT key, value, updated_at
		FROM parameters ORDER BY key ASC
	`
)

// Upsert stores value as the latest known value of key.
func (r *ParameterSQLite) Upsert(ctx context.Context, key, value string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, upsertParameterSQL, key, value, at.UTC()); err != nil {
		return fmt.Errorf("upsert parameter %q: %w", key, err)
	}
	return nil
}

// List returns all stored parameters ordered by key.
func (r *ParameterSQLite) List(ctx context.Context) ([]models.StoredParameter, error) {
	rows, err := r.db.QueryContext(ctx, selectParametersSQL)
	if err != nil {
		return nil, fmt.Errorf("select parameters: %w", err)
	}
	defer rows.Close()

	var out []models.StoredParameter
	for rows.Next() {
		var p models.StoredParameter
		if err := rows.Scan(&p.Key, &p.Value, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan parameter: %w", err)
		}
		p.UpdatedAt = p.UpdatedAt.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
