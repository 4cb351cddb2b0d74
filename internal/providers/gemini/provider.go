package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider implements the Gemini backend with its own typed decoder;
// generateContent reports text under candidates[].content.parts[].text
// and token counts under usageMetadata.
type Provider struct {
	id      string
	cfg     config.ProviderConfig
	creds   *providers.Credentials
	client  *http.Client
	baseURL string
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	TopP             *float32 `json:"topP,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type request struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type response struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
	ModelVersion  string        `json:"modelVersion"`
}

// NewProvider builds a Gemini adapter.
func NewProvider(id string, cfg config.ProviderConfig, creds *providers.Credentials) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		id:      id,
		cfg:     cfg,
		creds:   creds,
		client:  &http.Client{},
		baseURL: strings.TrimSuffix(baseURL, "/"),
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

// Complete performs a single generateContent call.
func (p *Provider) Complete(ctx context.Context, msgs []providers.Message, opts providers.Options) (*providers.CompletionResult, error) {
	key := p.creds.Key(ctx)
	if key == "" {
		return nil, providers.NewProviderError(p.id, "complete", providers.ErrCredentialMissing)
	}

	model := p.model(ctx, opts)
	req := convertRequest(msgs, opts)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, key)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, providers.NewProviderError(p.id, "complete",
			fmt.Errorf("gemini API error: %s - %s", resp.Status, string(bodyBytes)))
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}

	return p.convertResponse(model, &decoded)
}

func convertRequest(msgs []providers.Message, opts providers.Options) request {
	req := request{}

	var system []string
	for _, m := range msgs {
		switch m.Role {
		case providers.RoleSystem:
			system = append(system, m.Content)
		case providers.RoleAssistant:
			// Gemini names the assistant role "model".
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
	}

	gen := &generationConfig{MaxOutputTokens: opts.MaxOutputTokens}
	if opts.Temperature > 0 {
		t := opts.Temperature
		gen.Temperature = &t
	}
	if opts.TopP > 0 {
		tp := opts.TopP
		gen.TopP = &tp
	}
	if opts.StrictJSON {
		gen.ResponseMimeType = "application/json"
	}
	req.GenerationConfig = gen

	return req
}

func (p *Provider) convertResponse(model string, resp *response) (*providers.CompletionResult, error) {
	if len(resp.Candidates) == 0 {
		return nil, providers.NewProviderError(p.id, "complete", errors.New("empty candidates in response"))
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, pt := range cand.Content.Parts {
		sb.WriteString(pt.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, providers.NewProviderError(p.id, "complete", errors.New("empty completion text"))
	}

	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}
	tokens := providers.TokenUsage{
		Prompt:     resp.UsageMetadata.PromptTokenCount,
		Completion: resp.UsageMetadata.CandidatesTokenCount,
		Total:      resp.UsageMetadata.TotalTokenCount,
	}
	return &providers.CompletionResult{
		Text:         text,
		Confidence:   providers.SynthesizeConfidence(cand.FinishReason, tokens.Completion),
		Tokens:       tokens,
		Model:        model,
		FinishReason: cand.FinishReason,
	}, nil
}
