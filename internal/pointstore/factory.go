package pointstore

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Config selects and configures the point store backend.
type Config struct {
	// Provider is "memory", "chromem" or "qdrant". Default: "chromem".
	Provider string `koanf:"provider"`
	// EnumerationPolicy is "lenient" (default) or "strict".
	EnumerationPolicy string `koanf:"enumeration_policy"`

	Chromem    ChromemConfig  `koanf:"chromem"`
	Qdrant     QdrantConfig   `koanf:"qdrant"`
	Embeddings EmbedderConfig `koanf:"embeddings"`
}

// Validate checks the provider and policy names.
func (c Config) Validate() error {
	switch c.Provider {
	case "", "memory", "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: %q (supported: memory, chromem, qdrant)", ErrUnknownProvider, c.Provider)
	}
	if _, err := ParseEnumerationPolicy(c.EnumerationPolicy); err != nil {
		return err
	}
	return nil
}

// New creates the configured Store.
//
//   - "memory": an in-process MemoryCollection behind a ProbingStore
//   - "chromem" (default): an embedded chromem-go database
//   - "qdrant": a remote Qdrant collection over gRPC
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := ParseEnumerationPolicy(cfg.EnumerationPolicy)

	var (
		store Store
		err   error
	)
	switch cfg.Provider {
	case "memory":
		var ps *ProbingStore
		if ps, err = NewProbingStore(NewMemoryCollection(), policy, logger.Named("probe")); err == nil {
			store = ps
		}

	case "chromem", "":
		embedder, eerr := NewEmbedder(cfg.Embeddings)
		if eerr != nil {
			return nil, eerr
		}
		var cs *ChromemStore
		if cs, err = NewChromemStore(cfg.Chromem, embedder, logger.Named("chromem")); err == nil {
			store = cs
		}

	case "qdrant":
		embedder, eerr := NewEmbedder(cfg.Embeddings)
		if eerr != nil {
			return nil, eerr
		}
		if cfg.Qdrant.VectorSize == 0 && (cfg.Embeddings.Provider == "" || cfg.Embeddings.Provider == "hash") {
			cfg.Qdrant.VectorSize = uint64(NewHashEmbedder(cfg.Embeddings.Dimension).Dimension())
		}
		var qs *QdrantStore
		if qs, err = NewQdrantStore(ctx, cfg.Qdrant, embedder, logger.Named("qdrant")); err == nil {
			store = qs
		}
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Close releases backend resources when the store holds any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
