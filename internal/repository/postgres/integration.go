// Package postgres holds the sqlx repositories behind the engine's two
// persistence touchpoints: integration credential records (read) and
// the usage log (append).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

// IntegrationRepository reads credential records maintained by the
// settings layer.
type IntegrationRepository struct {
	db *sqlx.DB
}

// NewIntegrationRepository creates the repository.
func NewIntegrationRepository(db *sqlx.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// GetIntegration returns the record for name, or (nil, nil) when none
// exists; absence is a normal state, not an error.
func (r *IntegrationRepository) GetIntegration(ctx context.Context, name string) (*providers.Integration, error) {
	var record providers.Integration
	query := `SELECT name, enabled, api_key, config FROM integrations WHERE name = $1`

	if err := r.db.GetContext(ctx, &record, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get integration %s: %w", name, err)
	}
	return &record, nil
}

// Upsert writes a record, used by operator tooling and tests.
func (r *IntegrationRepository) Upsert(ctx context.Context, record *providers.Integration) error {
	query := `
		INSERT INTO integrations (name, enabled, api_key, config, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET enabled = EXCLUDED.enabled,
		    api_key = EXCLUDED.api_key,
		    config = EXCLUDED.config,
		    updated_at = now()`

	cfg := record.Config
	if len(cfg) == 0 {
		cfg = []byte("{}")
	}
	if _, err := r.db.ExecContext(ctx, query, record.Name, record.Enabled, record.APIKey, cfg); err != nil {
		return fmt.Errorf("failed to upsert integration %s: %w", record.Name, err)
	}
	return nil
}
