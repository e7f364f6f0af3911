package llm

import (
	"context"
	"fmt"

	"github.com/markdave123-py/CodeInsight/internal/config"
	"github.com/markdave123-py/CodeInsight/internal/core"
)

// NewEmbedder picks the embedding provider named by EMBED_PROVIDER.
func NewEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case config.EmbedProviderOpenAI:
		model := cfg.EmbedModel
		if model == "text-embedding-004" {
			model = ""
		}
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, model, cfg.EmbedDim)
	case config.EmbedProviderGemini, "":
		return NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
	default:
		return nil, fmt.Errorf("unknown embed provider %q", cfg.EmbedProvider)
	}
}
