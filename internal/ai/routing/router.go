// Package routing composes the complexity analyzer, the provider
// registry and the usage logger into a cost-aware fallback chain.
// Attempts run strictly in sequence and stop at the first success;
// the goal is minimal spend, not minimal latency.
package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/complexity"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/usage"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

// ErrNoProvidersAvailable means no adapter resolved a credential.
var ErrNoProvidersAvailable = errors.New("no providers available")

// AllProvidersFailedError is the terminal aggregate when every
// available provider failed; callers should hand off to a human.
type AllProvidersFailedError struct {
	Attempts int
	LastErr  error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all %d providers failed, last error: %v", e.Attempts, e.LastErr)
}

func (e *AllProvidersFailedError) Unwrap() error {
	return e.LastErr
}

// Task types derived from the latest user message unless the caller
// supplies one explicitly.
const (
	TaskGreeting = "greeting"
	TaskFollowup = "followup"
	TaskReminder = "reminder"
	TaskComplex  = "complex"
	TaskOther    = "other"
)

// Decision records why a provider was chosen. Created once per request
// and discarded after return.
type Decision struct {
	Provider      string              `json:"provider"`
	Model         string              `json:"model"`
	Reason        string              `json:"reason"`
	TaskType      string              `json:"task_type"`
	Complexity    complexity.Analysis `json:"complexity"`
	EstimatedCost float64             `json:"estimated_cost"`
}

// Result bundles the winning completion with its routing decision.
type Result struct {
	Completion *providers.CompletionResult `json:"completion"`
	Decision   Decision                    `json:"decision"`
	Escalated  bool                        `json:"escalated"`
}

// Service is the routing service. Construct once, share freely.
type Service struct {
	registry   *providers.Registry
	preference []string
	premium    map[string]string
	logger     usage.Logger
	log        *logrus.Logger
}

// NewService wires the router. preference ranks provider ids; available
// providers not listed are attempted after the ranked ones. premium
// maps provider ids to the model requested for high-complexity turns.
func NewService(registry *providers.Registry, preference []string, premium map[string]string, logger usage.Logger, log *logrus.Logger) *Service {
	return &Service{
		registry:   registry,
		preference: preference,
		premium:    premium,
		logger:     logger,
		log:        log,
	}
}

// Route runs the fallback chain: filter unavailable adapters, rank the
// rest, attempt each once in order, stop at the first success.
func (s *Service) Route(ctx context.Context, messages []providers.Message, opts providers.Options, hints *complexity.Hints) (*Result, error) {
	available := s.registry.Available(ctx)
	if len(available) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	analysis := complexity.Analyze(messages, hints)
	taskType := classifyTask(messages, analysis, hints)

	order := rankProviders(s.preference, available)

	var lastErr error
	for i, id := range order {
		provider := s.registry.Get(id)
		if provider == nil {
			continue
		}

		attemptOpts := opts
		if attemptOpts.Model == "" && complexity.RequiresPremium(analysis) {
			if premium := s.premium[id]; premium != "" {
				attemptOpts.Model = premium
			}
		}

		result, err := provider.Complete(ctx, messages, attemptOpts)
		if err != nil {
			lastErr = err
			s.log.WithFields(logrus.Fields{
				"provider": id,
				"attempt":  i + 1,
			}).WithError(err).Warn("provider attempt failed, trying next")
			continue
		}

		desc := provider.Descriptor()
		cost := attemptCost(desc, result.Tokens)

		reason := "primary"
		if i > 0 {
			reason = "fallback: primary failed"
		}

		s.logger.Log(ctx, usage.Entry{
			Provider: id,
			Model:    result.Model,
			Tokens:   result.Tokens,
			Cost:     cost,
			Success:  true,
			Reason:   reason,
		})

		return &Result{
			Completion: result,
			Decision: Decision{
				Provider:      id,
				Model:         result.Model,
				Reason:        reason,
				TaskType:      taskType,
				Complexity:    analysis,
				EstimatedCost: cost,
			},
			Escalated: i > 0,
		}, nil
	}

	// Best-effort failure record; the log itself never fails the call.
	s.logger.Log(ctx, usage.Entry{
		Provider: strings.Join(order, ","),
		Success:  false,
		Reason:   fmt.Sprintf("all providers failed: %v", lastErr),
	})

	return nil, &AllProvidersFailedError{Attempts: len(order), LastErr: lastErr}
}

// rankProviders orders available providers by the configured
// preference, appending unranked-but-available ones last (available is
// already sorted by the registry).
func rankProviders(preference, available []string) []string {
	availSet := make(map[string]bool, len(available))
	for _, id := range available {
		availSet[id] = true
	}

	order := make([]string, 0, len(available))
	seen := make(map[string]bool, len(available))
	for _, id := range preference {
		if availSet[id] && !seen[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	for _, id := range available {
		if !seen[id] {
			order = append(order, id)
		}
	}
	return order
}

func attemptCost(desc providers.Descriptor, tokens providers.TokenUsage) float64 {
	return float64(tokens.Prompt)/1000*desc.CostPer1kInput +
		float64(tokens.Completion)/1000*desc.CostPer1kOutput
}

func classifyTask(messages []providers.Message, analysis complexity.Analysis, hints *complexity.Hints) string {
	if hints != nil && hints.TaskType != "" {
		return hints.TaskType
	}

	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == providers.RoleUser {
			last = strings.ToLower(messages[i].Content)
			break
		}
	}

	switch {
	case hasWord(last, "hi", "hello", "hey") ||
		containsAny(last, "good morning", "good afternoon", "good evening"):
		return TaskGreeting
	case containsAny(last, "follow up", "following up", "checking in", "any update"):
		return TaskFollowup
	case containsAny(last, "remind", "don't forget"):
		return TaskReminder
	case analysis.Level == complexity.LevelHigh:
		return TaskComplex
	default:
		return TaskOther
	}
}

func containsAny(text string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}

// hasWord matches whole words only; short greetings like "hi" are
// substrings of too many other words.
func hasWord(text string, words ...string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
