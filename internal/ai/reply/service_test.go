package reply

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/complexity"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/retrieval"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/routing"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

// scriptedRouter returns one canned completion per call, in order.
type scriptedRouter struct {
	texts    []string
	err      error
	calls    [][]providers.Message
	decision routing.Decision
}

func (r *scriptedRouter) Route(_ context.Context, messages []providers.Message, _ providers.Options, _ *complexity.Hints) (*routing.Result, error) {
	r.calls = append(r.calls, messages)
	if r.err != nil {
		return nil, r.err
	}
	idx := len(r.calls) - 1
	if idx >= len(r.texts) {
		idx = len(r.texts) - 1
	}
	return &routing.Result{
		Completion: &providers.CompletionResult{Text: r.texts[idx], FinishReason: "stop"},
		Decision:   r.decision,
	}, nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newService(router Router, store *retrieval.Store) *Service {
	return NewService(router, store, Config{}, quietLog())
}

func askRequest(text string) Request {
	return Request{Messages: []providers.Message{{Role: providers.RoleUser, Content: text}}}
}

func TestGenerate_FirstAttemptAccepted(t *testing.T) {
	router := &scriptedRouter{
		texts:    []string{`{"reply":"Our office opens at nine.","service":"mainland","confidence":0.9}`},
		decision: routing.Decision{Provider: "openai", Model: "gpt-4o-mini"},
	}
	svc := newService(router, nil)

	reply, err := svc.Generate(context.Background(), askRequest("what time do you open"))
	require.NoError(t, err)

	require.NotNil(t, reply.Structured)
	assert.Equal(t, "Our office opens at nine.", reply.Structured.Reply)
	assert.Equal(t, "mainland", reply.Service)
	assert.InDelta(t, 0.9, reply.Confidence, 1e-9)
	assert.False(t, reply.NeedsHuman)
	assert.Empty(t, reply.ParseError)
	assert.Equal(t, "openai", reply.Decision.Provider)
	assert.Len(t, router.calls, 1)
}

func TestGenerate_RetryWithStricterInstruction(t *testing.T) {
	router := &scriptedRouter{texts: []string{
		`here is the answer you asked for, no JSON at all`,
		`{"reply":"We can prepare the license in five working days."}`,
	}}
	svc := newService(router, nil)

	reply, err := svc.Generate(context.Background(), askRequest("how long does a license take"))
	require.NoError(t, err)

	require.NotNil(t, reply.Structured)
	assert.Equal(t, "We can prepare the license in five working days.", reply.Structured.Reply)

	require.Len(t, router.calls, 2)
	second := router.calls[1]
	last := second[len(second)-1]
	assert.Equal(t, providers.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "rejected")
	assert.Contains(t, last.Content, "ONE valid JSON object")
}

func TestGenerate_ExtractionFallback(t *testing.T) {
	// Both attempts return JSON whose decode fails (trailing garbage
	// after the object makes extraction find it but full parse keeps
	// the broken shape), so the regex extraction path must salvage it.
	broken := `{"reply": "We will send the checklist today.", "confidence": "not a number"}`
	router := &scriptedRouter{texts: []string{broken, broken}}
	svc := newService(router, nil)

	reply, err := svc.Generate(context.Background(), askRequest("can you send the checklist"))
	require.NoError(t, err)

	require.NotNil(t, reply.Structured)
	assert.Equal(t, "We will send the checklist today.", reply.Structured.Reply)
	assert.NotEmpty(t, reply.ParseError)
	assert.False(t, reply.NeedsHuman)
	assert.Len(t, router.calls, 2)

	// A salvaged reply carries the same defaults a minimal parsed
	// object would.
	assert.Equal(t, "unknown", reply.Structured.Service)
	assert.Equal(t, "qualify", reply.Structured.Stage)
	assert.Equal(t, []string{}, reply.Structured.Missing)
	assert.InDelta(t, 0.5, reply.Structured.Confidence, 1e-9)
	assert.Equal(t, "unknown", reply.Service)
	assert.InDelta(t, 0.5, reply.Confidence, 1e-9)
}

func TestGenerate_ExtractionFallbackStillSanitized(t *testing.T) {
	// The salvageable reply text violates the contract, so extraction
	// must be refused and the raw fallback used instead.
	broken := `{"reply": "This outcome is guaranteed, 100% certain.", "confidence": "oops"}`
	router := &scriptedRouter{texts: []string{broken, broken}}
	svc := newService(router, nil)

	reply, err := svc.Generate(context.Background(), askRequest("will my visa be approved"))
	require.NoError(t, err)

	assert.Nil(t, reply.Structured)
	assert.True(t, reply.NeedsHuman)
}

func TestGenerate_RawFallback(t *testing.T) {
	longText := "I cannot produce structured output today. " + strings.Repeat("The relevant details follow in plain prose. ", 30)
	router := &scriptedRouter{
		texts:    []string{longText, longText},
		decision: routing.Decision{Provider: "anthropic"},
	}
	svc := NewService(router, nil, Config{MaxGenerationAttempts: 2, RawFallbackLimit: 100}, quietLog())

	reply, err := svc.Generate(context.Background(), askRequest("anything"))
	require.NoError(t, err)

	assert.Nil(t, reply.Structured)
	assert.True(t, reply.NeedsHuman)
	assert.Equal(t, "unknown", reply.Service)
	assert.Zero(t, reply.Confidence)
	assert.NotEmpty(t, reply.ParseError)
	assert.LessOrEqual(t, len(reply.RawText), 100)
	assert.Equal(t, "anthropic", reply.Decision.Provider)
	assert.Len(t, router.calls, 2)
}

func TestGenerate_RawFallbackKeepsRunesIntact(t *testing.T) {
	// The limit lands mid-rune; truncation must back up to the last
	// complete character instead of emitting a broken sequence.
	longText := strings.Repeat("a", 98) + "日本語"
	router := &scriptedRouter{texts: []string{longText, longText}}
	svc := NewService(router, nil, Config{MaxGenerationAttempts: 2, RawFallbackLimit: 100}, quietLog())

	reply, err := svc.Generate(context.Background(), askRequest("anything"))
	require.NoError(t, err)

	assert.True(t, reply.NeedsHuman)
	assert.True(t, utf8.ValidString(reply.RawText))
	assert.LessOrEqual(t, len(reply.RawText), 100)
	assert.Equal(t, strings.Repeat("a", 98), reply.RawText)
}

func TestGenerate_RouterErrorPropagates(t *testing.T) {
	routerErr := errors.New("no providers available")
	svc := newService(&scriptedRouter{err: routerErr}, nil)

	reply, err := svc.Generate(context.Background(), askRequest("hello"))
	assert.Nil(t, reply)
	assert.ErrorIs(t, err, routerErr)
}

// fixedEmbedder maps any text to the same vector so every stored
// document matches every query.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func TestGenerate_GroundingPrependsReference(t *testing.T) {
	store := retrieval.NewStore(fixedEmbedder{}, quietLog())
	require.NoError(t, store.Index(context.Background(), retrieval.Document{
		ID:       "faq-1",
		Content:  "A mainland trade license is issued within five working days.",
		Metadata: retrieval.Metadata{Title: "License timelines", Type: "faq"},
	}))

	router := &scriptedRouter{texts: []string{`{"reply":"About five working days."}`}}
	svc := newService(router, store)

	_, err := svc.Generate(context.Background(), askRequest("how long for a trade license"))
	require.NoError(t, err)

	require.Len(t, router.calls, 1)
	sent := router.calls[0]
	require.NotEmpty(t, sent)
	assert.Equal(t, providers.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, "verified reference material")
	assert.Contains(t, sent[0].Content, "License timelines")
	assert.Contains(t, sent[0].Content, "five working days")
}

func TestGenerate_EmptyStoreSkipsGrounding(t *testing.T) {
	store := retrieval.NewStore(fixedEmbedder{}, quietLog())
	router := &scriptedRouter{texts: []string{`{"reply":"Sure."}`}}
	svc := newService(router, store)

	_, err := svc.Generate(context.Background(), askRequest("hello"))
	require.NoError(t, err)

	require.Len(t, router.calls, 1)
	assert.Equal(t, providers.RoleUser, router.calls[0][0].Role)
}
