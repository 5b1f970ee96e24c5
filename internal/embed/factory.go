package embed

import (
	"fmt"

	"github.com/Aman-CERP/smre/internal/config"
)

// NewFromConfig creates the embedder named by cfg.Embedding.Provider. Query
// embeddings are cached when cache_size is positive.
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	var inner Embedder
	switch cfg.Embedding.Provider {
	case config.ProviderStatic, "":
		inner = NewStaticEmbedder()
	case config.ProviderOllama:
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.Embedding.OllamaHost,
			Model:      cfg.Embedding.ModelName,
			BatchSize:  cfg.Embedding.BatchSize,
			Timeout:    DefaultTimeout,
			MaxRetries: 2,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if cfg.Embedding.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.Embedding.CacheSize), nil
	}
	return inner, nil
}
