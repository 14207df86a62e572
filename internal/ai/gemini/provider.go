package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kiranshivaraju/partscout/internal/ai/prompt"
	"github.com/kiranshivaraju/partscout/internal/config"
	"github.com/kiranshivaraju/partscout/pkg/models"
)

// Provider implements models.AIProvider using the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// NewProvider opens a Gemini client. Close it when done.
func NewProvider(ctx context.Context, cfg config.GeminiConfig, opts ...option.ClientOption) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &Provider{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) Analyze(ctx context.Context, in models.AnalysisInput) (string, error) {
	m := p.client.GenerativeModel(p.model)
	m.SetTemperature(0.2)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt.SystemFor(in))},
	}

	parts := []genai.Part{genai.Text(prompt.User(in))}
	if in.HasImage() {
		parts = append(parts, genai.Blob{MIMEType: in.MIMEType, Data: in.Image})
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", classifyError(err))
	}

	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("gemini: %w: empty response", models.ErrInvalidResponse)
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}

// classifyError maps SDK errors to provider errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %v", models.ErrRequestRejected, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
			return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
		case gerr.Code >= 400:
			return fmt.Errorf("%w: %v", models.ErrRequestRejected, err)
		}
	}

	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
