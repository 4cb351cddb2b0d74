package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/usage"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

// UsageRepository appends completion-attempt records. Rows are never
// updated or deleted by the engine.
type UsageRepository struct {
	db *sqlx.DB
}

// NewUsageRepository creates the repository.
func NewUsageRepository(db *sqlx.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

type usageRow struct {
	ID               uuid.UUID `db:"id"`
	Provider         string    `db:"provider"`
	Model            string    `db:"model"`
	PromptTokens     int       `db:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens"`
	TotalTokens      int       `db:"total_tokens"`
	Cost             float64   `db:"cost"`
	Success          bool      `db:"success"`
	Reason           string    `db:"reason"`
	CreatedAt        time.Time `db:"created_at"`
}

// Append inserts one entry.
func (r *UsageRepository) Append(ctx context.Context, entry *usage.Entry) error {
	query := `
		INSERT INTO ai_usage_log
			(id, provider, model, prompt_tokens, completion_tokens, total_tokens, cost, success, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Provider, entry.Model,
		entry.Tokens.Prompt, entry.Tokens.Completion, entry.Tokens.Total,
		entry.Cost, entry.Success, entry.Reason, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append usage entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (r *UsageRepository) Recent(ctx context.Context, limit int) ([]*usage.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []usageRow
	query := `
		SELECT id, provider, model, prompt_tokens, completion_tokens, total_tokens,
		       cost, success, reason, created_at
		FROM ai_usage_log
		ORDER BY created_at DESC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list usage entries: %w", err)
	}

	entries := make([]*usage.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &usage.Entry{
			ID:       row.ID,
			Provider: row.Provider,
			Model:    row.Model,
			Tokens: providers.TokenUsage{
				Prompt:     row.PromptTokens,
				Completion: row.CompletionTokens,
				Total:      row.TotalTokens,
			},
			Cost:      row.Cost,
			Success:   row.Success,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt,
		})
	}
	return entries, nil
}
