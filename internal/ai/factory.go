package ai

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/partscout/internal/ai/anthropic"
	"github.com/kiranshivaraju/partscout/internal/ai/gemini"
	"github.com/kiranshivaraju/partscout/internal/ai/mock"
	"github.com/kiranshivaraju/partscout/internal/ai/ollama"
	"github.com/kiranshivaraju/partscout/internal/ai/openai"
	"github.com/kiranshivaraju/partscout/internal/ai/vllm"
	"github.com/kiranshivaraju/partscout/internal/config"
	"github.com/kiranshivaraju/partscout/pkg/models"
)

// NewProvider constructs the AI provider named by cfg.Provider.
// Called once at server startup. Providers holding a client connection also implement
// io.Closer.
func NewProvider(ctx context.Context, cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "gemini":
		p, err := gemini.NewProvider(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, openai, anthropic, ollama, vllm, mock", cfg.Provider)
	}
}
