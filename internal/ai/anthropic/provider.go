package anthropic

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

const (
	apiVersion = "2023-06-01"
	maxTokens  = 4096
)

// Provider implements models.AIProvider using the Anthropic Messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *httpapi.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: httpapi.New()}
}

// WithClient swaps the transport.
func (p *Provider) WithClient(c *httpapi.Client) *Provider {
	p.client = c
	return p
}

func (p *Provider) Name() string { return "anthropic" }

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type block struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (p *Provider) Analyze(ctx context.Context, in models.AnalysisInput) (string, error) {
	var content []block
	if in.HasImage() {
		content = append(content, block{Type: "image", Source: &imageSource{
			Type:      "base64",
			MediaType: in.MIMEType,
			Data:      base64.StdEncoding.EncodeToString(in.Image),
		}})
	}
	content = append(content, block{Type: "text", Text: prompt.User(in)})

	req := messagesRequest{
		Model:     p.cfg.Model,
		System:    prompt.SystemFor(in),
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: content}},
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	if err := p.client.PostJSON(ctx, p.cfg.BaseURL+"/v1/messages", headers, req, &resp); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(c.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic: %w: no text in response", models.ErrInvalidResponse)
	}
	return b.String(), nil
}

var _ models.AIProvider = (*Provider)(nil)
