package pointstore

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder turns query text into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbedderConfig selects the embedding provider used by the chromem and
// Qdrant stores.
type EmbedderConfig struct {
	// Provider is "hash", "ollama" or "openai". Default: "hash".
	Provider string `koanf:"provider"`
	// Model is the provider model name.
	Model string `koanf:"model"`
	// BaseURL overrides the Ollama endpoint.
	BaseURL string `koanf:"base_url"`
	// APIKey is required for openai.
	APIKey string `koanf:"api_key"`
	// Dimension is the vector size of the hash embedder. Default: 384.
	Dimension int `koanf:"dimension"`
}

// embedFunc adapts a chromem.EmbeddingFunc to Embedder.
type embedFunc chromem.EmbeddingFunc

func (f embedFunc) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "", "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	case "ollama":
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return embedFunc(chromem.NewEmbeddingFuncOllama(model, cfg.BaseURL)), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai embedder requires api_key", ErrInvalidConfig)
		}
		model := chromem.EmbeddingModelOpenAI3Small
		if cfg.Model != "" {
			model = chromem.EmbeddingModelOpenAI(cfg.Model)
		}
		return embedFunc(chromem.NewEmbeddingFuncOpenAI(cfg.APIKey, model)), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// EmbeddingFunc exposes an Embedder as a chromem.EmbeddingFunc.
func EmbeddingFunc(e Embedder) chromem.EmbeddingFunc {
	if f, ok := e.(embedFunc); ok {
		return chromem.EmbeddingFunc(f)
	}
	return e.EmbedQuery
}

// HashEmbedder is a deterministic bag-of-words embedder. Each lower-cased
// token is hashed into one of Dimension buckets and the result is
// L2-normalized. It needs no model and no network, which makes it the
// default for local runs and tests.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder. dim <= 0 selects 384.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEmbedder{dim: dim}
}

// Dimension returns the vector size.
func (h *HashEmbedder) Dimension() int { return h.dim }

// EmbedQuery implements Embedder.
func (h *HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(tok))
		vec[hasher.Sum32()%uint32(h.dim)]++
	}

	// A zero vector cannot be normalized; empty text maps to a fixed unit vector.
	if len(tokens) == 0 {
		vec[0] = 1
		return vec, nil
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
