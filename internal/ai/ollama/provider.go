package ollama

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

// Provider implements models.AIProvider using a local Ollama server and a vision model
// such as llava.
type Provider struct {
	cfg    config.OllamaConfig
	client *httpapi.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: httpapi.New()}
}

// WithClient swaps the transport.
func (p *Provider) WithClient(c *httpapi.Client) *Provider {
	p.client = c
	return p
}

func (p *Provider) Name() string { return "ollama" }

type message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

func (p *Provider) Analyze(ctx context.Context, in models.AnalysisInput) (string, error) {
	user := message{Role: "user", Content: prompt.User(in)}
	if in.HasImage() {
		user.Images = []string{base64.StdEncoding.EncodeToString(in.Image)}
	}
	req := chatRequest{
		Model: p.cfg.Model,
		Messages: []message{
			{Role: "system", Content: prompt.SystemFor(in)},
			user,
		},
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.cfg.BaseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("ollama: %w: empty message", models.ErrInvalidResponse)
	}
	return resp.Message.Content, nil
}

var _ models.AIProvider = (*Provider)(nil)
