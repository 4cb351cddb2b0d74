package openai

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/config"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

// Provider implements the OpenAI backend. With a BaseURL configured it
// serves any backend speaking the same chat wire format: DeepSeek,
// Ollama, LM Studio. Local backends accept any key, so their
// integration record may carry a placeholder; availability still
// follows the resolved credential so unconfigured backends stay out of
// the routing chain.
type Provider struct {
	id    string
	cfg   config.ProviderConfig
	creds *providers.Credentials

	clientOnce sync.Once
	client     *openai.Client
}

// NewProvider builds an OpenAI adapter. The credential is resolved
// lazily on first use, not at construction.
func NewProvider(id string, cfg config.ProviderConfig, creds *providers.Credentials) *Provider {
	return &Provider{id: id, cfg: cfg, creds: creds}
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

func (p *Provider) getClient(ctx context.Context) (*openai.Client, error) {
	key := p.creds.Key(ctx)
	if key == "" {
		return nil, providers.ErrCredentialMissing
	}
	p.clientOnce.Do(func() {
		if p.cfg.BaseURL != "" {
			clientConfig := openai.DefaultConfig(key)
			clientConfig.BaseURL = strings.TrimSuffix(p.cfg.BaseURL, "/") + "/v1"
			p.client = openai.NewClientWithConfig(clientConfig)
			return
		}
		p.client = openai.NewClient(key)
	})
	return p.client, nil
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

// Complete performs a single chat completion.
func (p *Provider) Complete(ctx context.Context, messages []providers.Message, opts providers.Options) (*providers.CompletionResult, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}

	req := openai.ChatCompletionRequest{
		Model:            p.model(ctx, opts),
		Messages:         convertMessages(messages),
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxOutputTokens,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
	}
	if opts.StrictJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, providers.NewProviderError(p.id, "complete", err)
	}
	if len(resp.Choices) == 0 {
		return nil, providers.NewProviderError(p.id, "complete", errors.New("empty choices in response"))
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return nil, providers.NewProviderError(p.id, "complete", errors.New("empty completion text"))
	}

	finish := string(choice.FinishReason)
	return &providers.CompletionResult{
		Text:       text,
		Confidence: providers.SynthesizeConfidence(finish, resp.Usage.CompletionTokens),
		Tokens: providers.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
		Model:        resp.Model,
		FinishReason: finish,
	}, nil
}

func convertMessages(messages []providers.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
