package vllm

import (
	"github.com/kiranshivaraju/partscout/internal/ai/openai"
	"github.com/kiranshivaraju/partscout/internal/config"
)

// NewProvider returns a provider for a vLLM server. vLLM serves the OpenAI chat
// completions API, so the OpenAI client is reused with the server's base URL and model.
func NewProvider(cfg config.VLLMConfig) *openai.Provider {
	return openai.NewCompatible("vllm", cfg.BaseURL, "", cfg.Model)
}
