// Package reply runs the full generation pipeline: route a completion,
// parse and sanitize it, and walk the fallback ladder when validation
// fails. Every reply leaving this package is either sanitizer-approved
// or explicitly flagged for human handoff.
package reply

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/complexity"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/contract"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/retrieval"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/routing"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

// Router is the slice of the routing service this pipeline needs.
type Router interface {
	Route(ctx context.Context, messages []providers.Message, opts providers.Options, hints *complexity.Hints) (*routing.Result, error)
}

// Request is one inbound conversational turn.
type Request struct {
	Messages []providers.Message
	Options  providers.Options
	Hints    *complexity.Hints

	// GroundingQuery overrides the retrieval query; defaults to the
	// latest user message.
	GroundingQuery string
}

// Reply is the returned artifact.
type Reply struct {
	Structured *contract.StructuredReply `json:"structured"`
	RawText    string                    `json:"raw_text"`
	ParseError string                    `json:"parse_error,omitempty"`
	NeedsHuman bool                      `json:"needs_human"`
	Service    string                    `json:"service"`
	Confidence float64                   `json:"confidence"`
	Decision   routing.Decision          `json:"decision"`
	Escalated  bool                      `json:"escalated"`
}

// Config tunes the fallback ladder.
type Config struct {
	// MaxGenerationAttempts bounds full re-generations, the first
	// attempt included.
	MaxGenerationAttempts int
	// RawFallbackLimit truncates the raw text used as a last resort.
	RawFallbackLimit int
	// RetrievalTopK and RetrievalThreshold tune grounding lookups.
	RetrievalTopK      int
	RetrievalThreshold float64
}

// Service is the generation pipeline. store may be nil when no
// knowledge base is attached.
type Service struct {
	router Router
	store  *retrieval.Store
	cfg    Config
	log    *logrus.Logger
}

// NewService wires the pipeline.
func NewService(router Router, store *retrieval.Store, cfg Config, log *logrus.Logger) *Service {
	if cfg.MaxGenerationAttempts <= 0 {
		cfg.MaxGenerationAttempts = 2
	}
	if cfg.RawFallbackLimit <= 0 {
		cfg.RawFallbackLimit = 600
	}
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = 3
	}
	return &Service{router: router, store: store, cfg: cfg, log: log}
}

// Generate produces exactly one customer-facing reply, or an error the
// caller should treat as a human-handoff trigger.
func (s *Service) Generate(ctx context.Context, req Request) (*Reply, error) {
	messages := s.ground(ctx, req)
	history := historyFromMessages(req.Messages)

	var (
		lastOutcome contract.Outcome
		lastResult  *routing.Result
	)

	for attempt := 0; attempt < s.cfg.MaxGenerationAttempts; attempt++ {
		attemptMessages := messages
		if attempt > 0 {
			attemptMessages = withStricterInstruction(messages, lastOutcome.Err)
		}

		result, err := s.router.Route(ctx, attemptMessages, req.Options, req.Hints)
		if err != nil {
			return nil, err
		}
		lastResult = result

		lastOutcome = contract.Parse(result.Completion.Text, history)
		if lastOutcome.Structured != nil {
			return s.accepted(lastOutcome, result), nil
		}

		s.log.WithFields(logrus.Fields{
			"attempt":  attempt + 1,
			"provider": result.Decision.Provider,
		}).WithError(lastOutcome.Err).Warn("reply rejected, retrying generation")
	}

	// Extraction fallback: salvage the reply value, still subject to
	// the sanitizer.
	if extracted, ok := contract.ExtractReply(lastOutcome.RawText); ok {
		if contract.Sanitize(extracted, history) == nil {
			structured := contract.NewExtractedReply(extracted)
			outcome := contract.Outcome{Structured: structured, RawText: lastOutcome.RawText}
			r := s.accepted(outcome, lastResult)
			r.ParseError = lastOutcome.Err.Error()
			return r, nil
		}
	}

	// Raw fallback: truncated text, explicitly escalated to a human.
	raw := truncateOnRuneBoundary(strings.TrimSpace(lastOutcome.RawText), s.cfg.RawFallbackLimit)
	return &Reply{
		Structured: nil,
		RawText:    raw,
		ParseError: lastOutcome.Err.Error(),
		NeedsHuman: true,
		Service:    "unknown",
		Confidence: 0,
		Decision:   lastResult.Decision,
		Escalated:  lastResult.Escalated,
	}, nil
}

func (s *Service) accepted(outcome contract.Outcome, result *routing.Result) *Reply {
	structured := outcome.Structured
	return &Reply{
		Structured: structured,
		RawText:    outcome.RawText,
		NeedsHuman: structured.NeedsHuman,
		Service:    structured.Service,
		Confidence: structured.Confidence,
		Decision:   result.Decision,
		Escalated:  result.Escalated,
	}
}

// ground prepends relevant knowledge-base content as a system message.
// Retrieval failures degrade to an ungrounded generation.
func (s *Service) ground(ctx context.Context, req Request) []providers.Message {
	if s.store == nil || s.store.Len() == 0 {
		return req.Messages
	}

	query := req.GroundingQuery
	if query == "" {
		query = lastUserMessage(req.Messages)
	}
	if query == "" {
		return req.Messages
	}

	found := s.store.Search(ctx, query, retrieval.SearchOptions{
		TopK:                s.cfg.RetrievalTopK,
		SimilarityThreshold: s.cfg.RetrievalThreshold,
	})
	if !found.HasRelevantTraining {
		return req.Messages
	}

	var sb strings.Builder
	sb.WriteString("Use only the following verified reference material when stating facts:\n")
	for _, doc := range found.Documents {
		sb.WriteString("\n---\n")
		if doc.Metadata.Title != "" {
			sb.WriteString(doc.Metadata.Title + "\n")
		}
		sb.WriteString(doc.Content)
	}

	grounded := make([]providers.Message, 0, len(req.Messages)+1)
	grounded = append(grounded, providers.Message{Role: providers.RoleSystem, Content: sb.String()})
	grounded = append(grounded, req.Messages...)
	return grounded
}

func withStricterInstruction(messages []providers.Message, rejection error) []providers.Message {
	instruction := fmt.Sprintf(
		"Your previous answer was rejected (%v). Respond with ONE valid JSON object only, "+
			"no markdown fences, with keys: reply (plain customer-facing text, no sign-offs, "+
			"no guarantees, no invented dates), service, stage, needs_human, missing, confidence.",
		rejection)

	out := make([]providers.Message, 0, len(messages)+1)
	out = append(out, messages...)
	out = append(out, providers.Message{Role: providers.RoleSystem, Content: instruction})
	return out
}

// truncateOnRuneBoundary cuts text to at most limit bytes without
// splitting a multi-byte rune.
func truncateOnRuneBoundary(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func historyFromMessages(messages []providers.Message) []contract.Turn {
	turns := make([]contract.Turn, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case providers.RoleUser:
			turns = append(turns, contract.Turn{Direction: contract.DirectionInbound, Text: m.Content})
		case providers.RoleAssistant:
			turns = append(turns, contract.Turn{Direction: contract.DirectionOutbound, Text: m.Content})
		}
	}
	return turns
}

func lastUserMessage(messages []providers.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == providers.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
