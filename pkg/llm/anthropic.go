package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider via the Anthropic Messages API.
// Anthropic assigns no generation identifier usable for after-the-fact
// cost lookup, so it does not implement CostTracker.
type AnthropicProvider struct {
	client anthropic.Client
	cfg    ProviderConfig
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

// Invoke sends a completion request and normalizes the response.
func (p *AnthropicProvider) Invoke(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	var systemPrompt string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt = joinTextParts(msg.Parts)
		case RoleUser:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				switch part.Type {
				case PartText:
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				case PartImage:
					blocks = append(blocks, anthropic.NewImageBlockBase64(part.MimeType, base64.StdEncoding.EncodeToString(part.Data)))
				case PartFile:
					blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
						Data: base64.StdEncoding.EncodeToString(part.Data),
					}))
				}
			}
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(b.Text)
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	outputTokens := int(resp.Usage.OutputTokens)

	return &Response{
		Content: content.String(),
		Usage: Usage{
			InputTokens:  &inputTokens,
			OutputTokens: &outputTokens,
		},
		Model:        string(resp.Model),
		GenerationID: resp.ID,
		Raw:          json.RawMessage(resp.RawJSON()),
		Duration:     time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

var _ Provider = (*AnthropicProvider)(nil)
