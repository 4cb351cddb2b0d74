package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubSource struct {
	records map[string]*Integration
	err     error
	calls   int
}

func (s *stubSource) GetIntegration(_ context.Context, name string) (*Integration, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records[name], nil
}

func TestCredentials_ExplicitKeyWins(t *testing.T) {
	source := &stubSource{records: map[string]*Integration{
		"openai": {Name: "openai", Enabled: true, APIKey: "sk-from-db"},
	}}
	creds := NewCredentials("sk-explicit", "openai", source)

	assert.Equal(t, "sk-explicit", creds.Key(context.Background()))
	assert.True(t, creds.Resolved(context.Background()))
	assert.Zero(t, source.calls, "explicit key must short-circuit the lookup")
}

func TestCredentials_IntegrationFallback(t *testing.T) {
	source := &stubSource{records: map[string]*Integration{
		"anthropic": {
			Name:    "anthropic",
			Enabled: true,
			APIKey:  "sk-from-db",
			Config:  json.RawMessage(`{"model":"claude-3-5-sonnet"}`),
		},
	}}
	creds := NewCredentials("", "anthropic", source)

	ctx := context.Background()
	assert.Equal(t, "sk-from-db", creds.Key(ctx))
	assert.Equal(t, "claude-3-5-sonnet", creds.ModelOverride(ctx))
	assert.True(t, creds.Resolved(ctx))
}

func TestCredentials_MissingCases(t *testing.T) {
	tests := []struct {
		name   string
		source *stubSource
	}{
		{"no record", &stubSource{records: map[string]*Integration{}}},
		{"record disabled", &stubSource{records: map[string]*Integration{
			"openai": {Name: "openai", Enabled: false, APIKey: "sk-from-db"},
		}}},
		{"record has empty key", &stubSource{records: map[string]*Integration{
			"openai": {Name: "openai", Enabled: true, APIKey: ""},
		}}},
		{"lookup fails", &stubSource{err: errors.New("db down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := NewCredentials("", "openai", tt.source)
			assert.False(t, creds.Resolved(context.Background()))
			assert.Empty(t, creds.Key(context.Background()))
		})
	}
}

func TestCredentials_NilSource(t *testing.T) {
	creds := NewCredentials("", "openai", nil)
	assert.False(t, creds.Resolved(context.Background()))
}

func TestCredentials_ResolvesOnce(t *testing.T) {
	source := &stubSource{records: map[string]*Integration{
		"openai": {Name: "openai", Enabled: true, APIKey: "sk-from-db"},
	}}
	creds := NewCredentials("", "openai", source)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.Equal(t, "sk-from-db", creds.Key(ctx))
	}
	assert.Equal(t, 1, source.calls)
}

func TestCredentials_MissIsCachedToo(t *testing.T) {
	source := &stubSource{records: map[string]*Integration{}}
	creds := NewCredentials("", "openai", source)

	ctx := context.Background()
	assert.False(t, creds.Resolved(ctx))

	// A record appearing later does not change the cached miss.
	source.records["openai"] = &Integration{Name: "openai", Enabled: true, APIKey: "sk-late"}
	assert.False(t, creds.Resolved(ctx))
	assert.Equal(t, 1, source.calls)
}

func TestCredentials_MalformedConfigIgnored(t *testing.T) {
	source := &stubSource{records: map[string]*Integration{
		"openai": {
			Name:    "openai",
			Enabled: true,
			APIKey:  "sk-from-db",
			Config:  json.RawMessage(`not json`),
		},
	}}
	creds := NewCredentials("", "openai", source)

	ctx := context.Background()
	assert.Equal(t, "sk-from-db", creds.Key(ctx))
	assert.Empty(t, creds.ModelOverride(ctx))
}

func TestSynthesizeConfidence(t *testing.T) {
	tests := []struct {
		name             string
		finishReason     string
		completionTokens int
		expected         int
	}{
		{"clean stop short", "stop", 10, 85},
		{"clean stop long", "stop", 40, 90},
		{"anthropic end turn", "end_turn", 40, 90},
		{"truncated", "length", 40, 55},
		{"gemini truncated", "MAX_TOKENS", 10, 50},
		{"unknown reason", "content_filter", 10, 70},
		{"missing reason", "", 10, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SynthesizeConfidence(tt.finishReason, tt.completionTokens))
		})
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	online := &registryStubProvider{available: true, desc: Descriptor{Name: "openai", ModelID: "gpt-4o-mini"}}
	offline := &registryStubProvider{available: false, desc: Descriptor{Name: "gemini", ModelID: "gemini-1.5-flash"}}

	registry.Register("openai", online)
	registry.Register("gemini", offline)

	assert.Equal(t, []string{"gemini", "openai"}, registry.List())
	assert.Equal(t, []string{"openai"}, registry.Available(context.Background()))
	assert.True(t, registry.Has("gemini"))
	assert.Nil(t, registry.Get("missing"))

	descs := registry.Descriptors(context.Background())
	assert.True(t, descs["openai"].Available)
	assert.False(t, descs["gemini"].Available)

	registry.Unregister("gemini")
	assert.False(t, registry.Has("gemini"))
}

type registryStubProvider struct {
	desc      Descriptor
	available bool
}

func (p *registryStubProvider) Descriptor() Descriptor             { return p.desc }
func (p *registryStubProvider) IsAvailable(_ context.Context) bool { return p.available }
func (p *registryStubProvider) Complete(_ context.Context, _ []Message, _ Options) (*CompletionResult, error) {
	return &CompletionResult{Text: "{}"}, nil
}
