// Package llm provides a unified interface for chat-completion providers.
//
// Providers normalize the wire response into a single strongly-typed
// Response at the boundary; everything downstream of the provider reads
// only the normalized shape.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// PartType identifies the kind of content a message part carries.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
	PartFile  PartType = "file"
)

// Part is one typed piece of user content: inline text, an image, or a
// whole file. Binary parts carry raw bytes; providers base64-encode them
// as their wire format requires.
type Part struct {
	Type     PartType
	Text     string
	Data     []byte
	MimeType string
}

// NewTextPart creates a text part.
func NewTextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// NewImagePart creates an image part with raw data and mime type.
func NewImagePart(data []byte, mimeType string) Part {
	return Part{Type: PartImage, Data: data, MimeType: mimeType}
}

// NewFilePart creates a whole-file attachment part.
func NewFilePart(data []byte, mimeType string) Part {
	return Part{Type: PartFile, Data: data, MimeType: mimeType}
}

// Message represents a chat message composed of ordered parts.
type Message struct {
	Role  Role
	Parts []Part
}

// NewSystemMessage creates a system message.
func NewSystemMessage(parts ...Part) Message {
	return Message{Role: RoleSystem, Parts: parts}
}

// NewUserMessage creates a user message.
func NewUserMessage(parts ...Part) Message {
	return Message{Role: RoleUser, Parts: parts}
}

// Request represents a completion request.
type Request struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage tracks token consumption. Fields are nil when the provider did
// not report the corresponding count.
type Usage struct {
	InputTokens  *int
	OutputTokens *int
}

// Response is the normalized result of a provider invocation.
type Response struct {
	// Content is the response text.
	Content string

	// Usage holds normalized token counts, if reported.
	Usage Usage

	// Model is the model that actually served the request (may differ
	// from the requested one for auto-routing providers).
	Model string

	// GenerationID is the provider-assigned identifier for this
	// generation, used for after-the-fact cost lookup. Empty if the
	// provider does not assign one.
	GenerationID string

	// Raw is the provider's wire response, kept opaque for diagnostics.
	Raw json.RawMessage

	Duration time.Duration
}

// Provider is the core interface every chat backend implements.
type Provider interface {
	// Invoke sends a completion request and returns the normalized
	// response. Failures surface as transport errors.
	Invoke(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g. "openrouter").
	Name() string
}

// ErrCostNotReady reports that the cost backend has no record for a
// generation yet. Fresh generation IDs may 404 briefly; callers retry.
var ErrCostNotReady = errors.New("generation cost not available yet")

// CostTracker is an optional interface for providers that can fetch the
// billed cost of a completed generation.
type CostTracker interface {
	// FetchGenerationCost performs one lookup for the generation's
	// billed cost in USD. Returns ErrCostNotReady if the record does
	// not exist yet.
	FetchGenerationCost(ctx context.Context, generationID string) (float64, error)

	// SupportsGenerationCost returns true if cost lookup is available.
	SupportsGenerationCost() bool
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPReferer and AppTitle set OpenRouter attribution headers.
	HTTPReferer string
	AppTitle    string
}

// NormalizeUsage extracts token counts from a loosely-typed response
// payload. It checks the top-level "usage" block first, then a "usage"
// block nested inside "metadata"; within each block it accepts
// input_tokens/output_tokens with prompt_tokens/completion_tokens as the
// fallback field names. Missing or malformed fields yield nil counts,
// never an error.
func NormalizeUsage(raw map[string]any) Usage {
	if block, ok := raw["usage"].(map[string]any); ok {
		if u := usageFromBlock(block); u.InputTokens != nil || u.OutputTokens != nil {
			return u
		}
	}
	if meta, ok := raw["metadata"].(map[string]any); ok {
		if block, ok := meta["usage"].(map[string]any); ok {
			return usageFromBlock(block)
		}
	}
	return Usage{}
}

func usageFromBlock(block map[string]any) Usage {
	var u Usage
	if n, ok := intField(block, "input_tokens"); ok {
		u.InputTokens = &n
	} else if n, ok := intField(block, "prompt_tokens"); ok {
		u.InputTokens = &n
	}
	if n, ok := intField(block, "output_tokens"); ok {
		u.OutputTokens = &n
	} else if n, ok := intField(block, "completion_tokens"); ok {
		u.OutputTokens = &n
	}
	return u
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
