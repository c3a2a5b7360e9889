package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openRouterBaseURL       = "https://openrouter.ai/api/v1"
	openRouterGenerationURL = "https://openrouter.ai/api/v1/generation"
)

// OpenRouterProvider implements Provider plus CostTracker via OpenRouter's
// OpenAI-compatible chat-completions endpoint. It also serves plain OpenAI
// or any other OpenAI-compatible backend when given a custom base URL (cost
// tracking is then unavailable).
type OpenRouterProvider struct {
	client        openai.Client
	httpClient    *http.Client
	cfg           ProviderConfig
	generationURL string
	costTracking  bool
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(cfg ProviderConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key required")
	}

	baseURL := cfg.BaseURL
	costTracking := false
	generationURL := openRouterGenerationURL
	if baseURL == "" {
		baseURL = openRouterBaseURL
		costTracking = true
	} else if baseURL == openRouterBaseURL {
		costTracking = true
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
	}
	if cfg.HTTPReferer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.HTTPReferer))
	}
	if cfg.AppTitle != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.AppTitle))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenRouterProvider{
		client:        openai.NewClient(opts...),
		httpClient:    &http.Client{Timeout: timeout},
		cfg:           cfg,
		generationURL: generationURL,
		costTracking:  costTracking,
	}, nil
}

// Invoke sends a completion request and normalizes the response.
func (p *OpenRouterProvider) Invoke(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(joinTextParts(msg.Parts)))
		case RoleUser:
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				switch part.Type {
				case PartText:
					parts = append(parts, openai.TextContentPart(part.Text))
				case PartImage:
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: dataURL(part.MimeType, part.Data),
					}))
				case PartFile:
					parts = append(parts, openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
						Filename: openai.String("document"),
						FileData: openai.String(dataURL(part.MimeType, part.Data)),
					}))
				}
			}
			messages = append(messages, openai.UserMessage(parts))
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

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	// Normalize once at the boundary; downstream reads only this shape.
	raw := json.RawMessage(resp.RawJSON())
	var payload map[string]any
	_ = json.Unmarshal(raw, &payload)

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		Usage:        NormalizeUsage(payload),
		Model:        resp.Model,
		GenerationID: resp.ID,
		Raw:          raw,
		Duration:     time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// SupportsGenerationCost returns true when talking to OpenRouter proper.
func (p *OpenRouterProvider) SupportsGenerationCost() bool {
	return p.costTracking
}

// FetchGenerationCost performs one lookup against the generation endpoint.
// Generation records are eventually consistent; a 404 surfaces as
// ErrCostNotReady so the caller can retry.
func (p *OpenRouterProvider) FetchGenerationCost(ctx context.Context, generationID string) (float64, error) {
	if generationID == "" {
		return 0, fmt.Errorf("generation ID required")
	}

	url := fmt.Sprintf("%s?id=%s", p.generationURL, generationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("generation %s: %w", generationID, ErrCostNotReady)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data struct {
			TotalCost float64 `json:"total_cost"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	return result.Data.TotalCost, nil
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func joinTextParts(parts []Part) string {
	var s string
	for _, p := range parts {
		if p.Type == PartText {
			if s != "" {
				s += "\n"
			}
			s += p.Text
		}
	}
	return s
}

var (
	_ Provider    = (*OpenRouterProvider)(nil)
	_ CostTracker = (*OpenRouterProvider)(nil)
)
