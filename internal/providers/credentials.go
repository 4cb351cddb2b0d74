package providers

import (
	"context"
	"encoding/json"
	"sync"
)

// Integration is a persisted credential record for one backend,
// maintained outside this engine (settings UI). Config may carry an
// optional model override.
type Integration struct {
	Name    string          `json:"name" db:"name"`
	Enabled bool            `json:"enabled" db:"enabled"`
	APIKey  string          `json:"api_key" db:"api_key"`
	Config  json.RawMessage `json:"config" db:"config"`
}

// IntegrationSource looks up integration records by name.
type IntegrationSource interface {
	GetIntegration(ctx context.Context, name string) (*Integration, error)
}

// Credentials resolves a backend's API key from a layered source: an
// explicit pre-set key wins, else the named integration record. The
// result (including a miss) is resolved once and cached for the
// adapter's lifetime.
type Credentials struct {
	explicit    string
	integration string
	source      IntegrationSource

	once          sync.Once
	key           string
	modelOverride string
}

// NewCredentials builds a resolver. source may be nil when only the
// explicit key is in play.
func NewCredentials(explicit, integration string, source IntegrationSource) *Credentials {
	return &Credentials{
		explicit:    explicit,
		integration: integration,
		source:      source,
	}
}

func (c *Credentials) resolve(ctx context.Context) {
	c.once.Do(func() {
		if c.explicit != "" {
			c.key = c.explicit
			return
		}
		if c.source == nil || c.integration == "" {
			return
		}
		record, err := c.source.GetIntegration(ctx, c.integration)
		if err != nil || record == nil || !record.Enabled || record.APIKey == "" {
			return
		}
		c.key = record.APIKey
		if len(record.Config) > 0 {
			var cfg struct {
				Model string `json:"model"`
			}
			if json.Unmarshal(record.Config, &cfg) == nil {
				c.modelOverride = cfg.Model
			}
		}
	})
}

// Key returns the resolved API key, or "" when none could be found.
func (c *Credentials) Key(ctx context.Context) string {
	c.resolve(ctx)
	return c.key
}

// ModelOverride returns the integration-configured model id, if any.
func (c *Credentials) ModelOverride(ctx context.Context) string {
	c.resolve(ctx)
	return c.modelOverride
}

// Resolved reports whether a usable key exists.
func (c *Credentials) Resolved(ctx context.Context) bool {
	return c.Key(ctx) != ""
}
