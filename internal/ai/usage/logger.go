// Package usage records every completion attempt in an append-only
// log. It is a non-critical side channel: a failed write must never
// abort the request that produced it.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

// Entry is one completion attempt. Never mutated after Log.
type Entry struct {
	ID        uuid.UUID            `json:"id"`
	Provider  string               `json:"provider"`
	Model     string               `json:"model"`
	Tokens    providers.TokenUsage `json:"tokens"`
	Cost      float64              `json:"cost"`
	Success   bool                 `json:"success"`
	Reason    string               `json:"reason"`
	CreatedAt time.Time            `json:"created_at"`
}

// Repository persists entries.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}

// Logger is the interface the router depends on.
type Logger interface {
	Log(ctx context.Context, entry Entry)
}

// Service implements Logger over a Repository.
type Service struct {
	repo Repository
	log  *logrus.Logger
}

// NewService creates the usage service.
func NewService(repo Repository, log *logrus.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Log appends an entry. Write failures are demoted to warnings.
func (s *Service) Log(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Append(ctx, &entry); err != nil {
		s.log.WithFields(logrus.Fields{
			"provider": entry.Provider,
			"model":    entry.Model,
		}).WithError(err).Warn("failed to append usage entry")
	}
}

// Recent returns the newest entries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	return s.repo.Recent(ctx, limit)
}
