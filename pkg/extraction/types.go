// Package extraction implements concurrent multi-object extraction of
// structured data from documents via an LLM chat endpoint.
//
// Callers declare a set of independently-defined targets (tables or
// strings), and the engine dispatches one model request per target across
// a bounded worker pool, retries failed requests with backoff, parses and
// validates each response, optionally enriches results with billed cost,
// and aggregates per-target outcomes into one result set. Individual
// target failures never abort sibling targets; callers always receive a
// complete result set and inspect failures through its fields.
package extraction

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/entityxtract/entityxtract/pkg/document"
)

// InputMode selects how document content is attached to a model request.
type InputMode string

const (
	// ModeText inlines the document text into the prompt.
	ModeText InputMode = "text"
	// ModeImage attaches the document's page images.
	ModeImage InputMode = "image"
	// ModeFile attaches the raw document bytes as a base64 file.
	ModeFile InputMode = "file"
)

// Target is one named thing to extract from a document. The variant set
// is closed: TableTarget and StringTarget are the only implementations,
// and RequestBuilder matches exhaustively over them.
type Target interface {
	// TargetName returns the name the result set is keyed by.
	TargetName() string

	sealedTarget()
}

// TableTarget declares a table to extract.
type TableTarget struct {
	Name         string           `yaml:"name" validate:"required"`
	Columns      []string         `yaml:"columns" validate:"required,min=1"`
	ExampleRows  []map[string]any `yaml:"example"`
	Instructions string           `yaml:"instructions"`
	Required     bool             `yaml:"required"`
}

// TargetName returns the table's name.
func (t TableTarget) TargetName() string { return t.Name }

func (TableTarget) sealedTarget() {}

// StringTarget declares a single string value to extract.
type StringTarget struct {
	Name         string `yaml:"name" validate:"required"`
	Example      string `yaml:"example"`
	Instructions string `yaml:"instructions"`
	Required     bool   `yaml:"required"`
}

// TargetName returns the string's name.
func (s StringTarget) TargetName() string { return s.Name }

func (StringTarget) sealedTarget() {}

// Config holds the settings shared read-only across all concurrent
// target runs.
type Config struct {
	// ModelName is the model to request.
	ModelName string `validate:"required"`

	// Temperature is the sampling temperature.
	Temperature float64 `validate:"gte=0,lte=2"`

	// MaxRetries is the total number of attempts per target (not the
	// number of retries after the first attempt).
	MaxRetries int `validate:"gte=1"`

	// Parallelism bounds the worker pool. Clamped to at least 1.
	Parallelism int `validate:"gte=1"`

	// InputModes selects which document representations are sent.
	InputModes []InputMode `validate:"min=1,dive,oneof=text image file"`

	// CalculateCosts enables the after-the-fact billed-cost lookup.
	CalculateCosts bool

	// MaxTokens caps the model's output tokens. 0 uses the provider
	// default.
	MaxTokens int `validate:"gte=0"`
}

// DefaultConfig returns the default extraction settings.
func DefaultConfig(modelName string) Config {
	return Config{
		ModelName:   modelName,
		Temperature: 0.0,
		MaxRetries:  3,
		Parallelism: 1,
		InputModes:  []InputMode{ModeFile},
	}
}

var validate = validator.New()

// Validate checks the config invariants.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid extraction config: %w", err)
	}
	return nil
}

func (c Config) hasMode(m InputMode) bool {
	for _, mode := range c.InputModes {
		if mode == m {
			return true
		}
	}
	return false
}

// Result is the terminal outcome for one target.
type Result struct {
	// ExtractedData is the parsed structured value, absent on failure.
	ExtractedData any `json:"extracted_data,omitempty" yaml:"extracted_data,omitempty"`

	// RawResponse is the last attempt's opaque wire payload, kept for
	// diagnostics even when the target failed.
	RawResponse json.RawMessage `json:"raw_response,omitempty" yaml:"raw_response,omitempty"`

	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message" yaml:"message"`

	InputTokens  *int     `json:"input_tokens,omitempty" yaml:"input_tokens,omitempty"`
	OutputTokens *int     `json:"output_tokens,omitempty" yaml:"output_tokens,omitempty"`
	Cost         *float64 `json:"cost,omitempty" yaml:"cost,omitempty"`
}

// ResultSet maps target names to their results, with aggregate totals.
type ResultSet struct {
	Results map[string]Result `json:"results" yaml:"results"`

	// Success is the logical AND over all per-target results.
	Success bool `json:"success" yaml:"success"`

	// Message is set only when at least one target failed.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Totals sum only the results that report the respective field;
	// nil means no result reported it (not zero).
	TotalInputTokens  *int     `json:"total_input_tokens,omitempty" yaml:"total_input_tokens,omitempty"`
	TotalOutputTokens *int     `json:"total_output_tokens,omitempty" yaml:"total_output_tokens,omitempty"`
	TotalCost         *float64 `json:"total_cost,omitempty" yaml:"total_cost,omitempty"`
}

// Document is the read-only accessor capability the engine consumes.
// Implementations must be safe for concurrent use; pkg/document provides
// a file-backed one.
type Document interface {
	// Text returns the document's text content.
	Text() (string, error)

	// Images returns the document's page images; may be empty.
	Images() ([]document.Image, error)

	// Binary returns the raw document bytes.
	Binary() ([]byte, error)

	// MimeType returns the document's mime type.
	MimeType() string
}
