package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrEmbeddingUnavailable wraps embedding-service failures, including
// a tripped circuit breaker.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderConfig tunes the OpenAI-backed embedder.
type EmbedderConfig struct {
	Model         string
	MaxTextLength int
	CacheSize     int
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint behind an LRU
// cache and a circuit breaker, so a flapping embedding service neither
// re-bills identical texts nor gets hammered while down.
type OpenAIEmbedder struct {
	client  *openai.Client
	cfg     EmbedderConfig
	cache   *lru.Cache[string, []float32]
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewOpenAIEmbedder builds the embedder.
func NewOpenAIEmbedder(client *openai.Client, cfg EmbedderConfig, log *logrus.Logger) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 8192
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "embedding-service",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("embedding circuit breaker state changed")
		},
	})

	return &OpenAIEmbedder{
		client:  client,
		cfg:     cfg,
		cache:   cache,
		breaker: breaker,
		log:     log,
	}, nil
}

// Embed returns the vector for text, bounded to the configured length.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > e.cfg.MaxTextLength {
		text = text[:e.cfg.MaxTextLength]
	}

	key := cacheKey(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(e.cfg.Model),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return nil, errors.New("empty embedding in response")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	vec := result.([]float32)
	e.cache.Add(key, vec)
	return vec, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
