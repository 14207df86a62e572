package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/partscout/internal/ai/httpapi"
	"github.com/kiranshivaraju/partscout/internal/ai/prompt"
	"github.com/kiranshivaraju/partscout/internal/config"
	"github.com/kiranshivaraju/partscout/pkg/models"
)

// Provider implements models.AIProvider against the OpenAI chat completions API, or any
// server that speaks it.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *httpapi.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return NewCompatible("openai", cfg.BaseURL, cfg.APIKey, cfg.Model)
}

// NewCompatible returns a provider for an OpenAI compatible endpoint. apiKey may be empty.
func NewCompatible(name, baseURL, apiKey, model string) *Provider {
	return &Provider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  httpapi.New(),
	}
}

// WithClient swaps the transport.
func (p *Provider) WithClient(c *httpapi.Client) *Provider {
	p.client = c
	return p
}

func (p *Provider) Name() string { return p.name }

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *Provider) Analyze(ctx context.Context, in models.AnalysisInput) (string, error) {
	parts := []contentPart{{Type: "text", Text: prompt.User(in)}}
	if in.HasImage() {
		dataURL := "data:" + in.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(in.Image)
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}})
	}

	req := chatRequest{
		Model: p.model,
		Messages: []message{
			{Role: "system", Content: prompt.SystemFor(in)},
			{Role: "user", Content: parts},
		},
		Temperature: 0.2,
	}
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.baseURL+"/v1/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w: no content in response", p.name, models.ErrInvalidResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ models.AIProvider = (*Provider)(nil)
