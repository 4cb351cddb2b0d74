package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/config"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

const (
	messagesURL      = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"

	// The messages API requires max_tokens; used when the caller
	// leaves it unset.
	defaultMaxTokens = 1024
)

// Provider implements the Anthropic backend with its own typed decoder;
// the messages API reports text under content[].text and token counts
// under usage.input_tokens/output_tokens.
type Provider struct {
	id     string
	cfg    config.ProviderConfig
	creds  *providers.Credentials
	client *http.Client
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature,omitempty"`
	TopP        *float32  `json:"top_p,omitempty"`
	System      string    `json:"system,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type response struct {
	ID         string         `json:"id"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      usage          `json:"usage"`
}

// NewProvider builds an Anthropic adapter.
func NewProvider(id string, cfg config.ProviderConfig, creds *providers.Credentials) *Provider {
	return &Provider{
		id:     id,
		cfg:    cfg,
		creds:  creds,
		client: &http.Client{},
	}
}

// Descriptor returns the backend identity and pricing.
func (p *Provider) Descriptor() providers.Descriptor {
	return providers.Descriptor{
		Name:            p.cfg.Name,
		ModelID:         p.cfg.Model,
		CostPer1kInput:  p.cfg.CostPer1kInput,
		CostPer1kOutput: p.cfg.CostPer1kOutput,
	}
}

// IsAvailable reports whether an API key resolved.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.creds.Resolved(ctx)
}

func (p *Provider) model(ctx context.Context, opts providers.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	if override := p.creds.ModelOverride(ctx); override != "" {
		return override
	}
	return p.cfg.Model
}

// Complete performs a single messages-API completion.
func (p *Provider) Complete(ctx context.Context, msgs []providers.Message, opts providers.Options) (*providers.CompletionResult, error) {
	key := p.creds.Key(ctx)
	if key == "" {
		return nil, providers.NewProviderError(p.id, "complete", providers.ErrCredentialMissing)
	}

	req := p.convertRequest(ctx, msgs, opts)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", key)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, providers.NewProviderError(p.id, "complete",
			fmt.Errorf("anthropic API error: %s - %s", resp.Status, string(bodyBytes)))
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}

	return p.convertResponse(&decoded)
}

func (p *Provider) convertRequest(ctx context.Context, msgs []providers.Message, opts providers.Options) request {
	req := request{
		Model:     p.model(ctx, opts),
		MaxTokens: opts.MaxOutputTokens,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		req.Temperature = &t
	}
	if opts.TopP > 0 {
		tp := opts.TopP
		req.TopP = &tp
	}

	// System turns ride in the dedicated field; the messages API
	// rejects them inline.
	var system []string
	for _, m := range msgs {
		if m.Role == providers.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, message{Role: m.Role, Content: m.Content})
	}
	if opts.StrictJSON {
		system = append(system, "Respond with a single valid JSON object and nothing else.")
	}
	req.System = strings.Join(system, "\n\n")

	return req
}

func (p *Provider) convertResponse(resp *response) (*providers.CompletionResult, error) {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, providers.NewProviderError(p.id, "complete", errors.New("empty completion text"))
	}

	tokens := providers.TokenUsage{
		Prompt:     resp.Usage.InputTokens,
		Completion: resp.Usage.OutputTokens,
		Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return &providers.CompletionResult{
		Text:         text,
		Confidence:   providers.SynthesizeConfidence(resp.StopReason, tokens.Completion),
		Tokens:       tokens,
		Model:        resp.Model,
		FinishReason: resp.StopReason,
	}, nil
}
