package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/entityxtract/entityxtract/internal/config"
	"github.com/entityxtract/entityxtract/internal/logger"
	"github.com/entityxtract/entityxtract/internal/output"
	"github.com/entityxtract/entityxtract/pkg/document"
	"github.com/entityxtract/entityxtract/pkg/extraction"
	"github.com/entityxtract/entityxtract/pkg/llm"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured targets from a document",
	Long: `Extract the targets defined in a targets file from one document.

The targets file is YAML and lists the tables and strings to extract.
Each target gets its own model call; targets run concurrently and each
one succeeds or fails independently.

Example targets file:

  targets:
    - kind: table
      name: line_items
      columns: [description, quantity, unit_price]
      example:
        - description: Widget
          quantity: 2
          unit_price: 9.99
    - kind: string
      name: invoice_number
      example: INV-2024-001

Examples:
  # Extract from a PDF using the raw file attachment
  entityxtract extract -d invoice.pdf -t targets.yaml

  # Inline the document text instead, write YAML to a file
  entityxtract extract -d notes.txt -t targets.yaml \
      --input-modes text --format yaml -o results.yaml`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()

	// Inputs
	flags.StringP("document", "d", "", "path to the document (required)")
	flags.StringP("targets", "t", "", "path to the targets YAML file (required)")

	// LLM settings
	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai, openrouter (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.String("base-url", "", "custom API base URL")
	flags.Duration("timeout", 120*time.Second, "per-request timeout")

	// Extraction settings
	flags.Float64("temperature", 0.0, "sampling temperature")
	flags.Int("max-retries", 3, "total attempts per target")
	flags.IntP("parallelism", "c", 1, "concurrent target extractions")
	flags.StringSlice("input-modes", []string{"file"}, "document representations to send: text, image, file")
	flags.Bool("calculate-costs", false, "look up billed cost per call (OpenRouter only)")
	flags.Int("max-tokens", 0, "cap on model output tokens (0 = provider default)")

	// Output settings
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	_ = extractCmd.MarkFlagRequired("document")
	_ = extractCmd.MarkFlagRequired("targets")

	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load targets
	targetsPath, _ := cmd.Flags().GetString("targets")
	targets, err := LoadTargets(targetsPath)
	if err != nil {
		log.Error("failed to load targets", "path", targetsPath, "error", err)
		return err
	}
	log.Debug("targets loaded", "path", targetsPath, "count", len(targets))

	// Load document
	docPath, _ := cmd.Flags().GetString("document")
	doc, err := document.Open(docPath)
	if err != nil {
		log.Error("failed to open document", "path", docPath, "error", err)
		return err
	}
	log.Debug("document loaded", "path", docPath, "kind", doc.Kind(), "mime", doc.MimeType())

	// Resolve provider and credentials
	provider, providerName, err := buildProvider(cmd, log)
	if err != nil {
		return err
	}

	// Build extraction config
	modelName := viper.GetString("model")
	if modelName == "" {
		modelName = llm.DefaultModels[providerName]
	}
	cfg := extraction.DefaultConfig(modelName)
	cfg.Temperature, _ = cmd.Flags().GetFloat64("temperature")
	cfg.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
	cfg.Parallelism, _ = cmd.Flags().GetInt("parallelism")
	cfg.CalculateCosts, _ = cmd.Flags().GetBool("calculate-costs")
	cfg.MaxTokens, _ = cmd.Flags().GetInt("max-tokens")

	modes, _ := cmd.Flags().GetStringSlice("input-modes")
	cfg.InputModes = cfg.InputModes[:0]
	for _, m := range modes {
		cfg.InputModes = append(cfg.InputModes, extraction.InputMode(strings.ToLower(strings.TrimSpace(m))))
	}

	extractor, err := extraction.New(provider, extraction.WithLogger(log))
	if err != nil {
		log.Error("failed to create extractor", "error", err)
		return err
	}

	log.Info("starting extraction",
		"document", docPath,
		"targets", len(targets),
		"provider", provider.Name(),
		"model", cfg.ModelName,
		"parallelism", cfg.Parallelism)

	set, err := extractor.Extract(ctx, doc, targets, cfg)
	if err != nil {
		log.Error("extraction failed", "error", err)
		return err
	}

	// Write results
	outFile := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			log.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		outFile = f
	}

	formatStr, _ := cmd.Flags().GetString("format")
	writer, err := output.NewWriter(outFile, output.Format(formatStr))
	if err != nil {
		log.Error("failed to create output writer", "format", formatStr, "error", err)
		return err
	}
	if err := writer.Write(set); err != nil {
		log.Error("failed to write results", "error", err)
		return err
	}

	if !set.Success {
		return fmt.Errorf("some extractions failed")
	}
	return nil
}

// buildProvider resolves the provider name, API key, and base URL from
// flags, environment, and an optional config.yaml, then constructs the
// provider. The resolved name is returned alongside the provider since
// registry aliases may share an adapter.
func buildProvider(cmd *cobra.Command, log *slog.Logger) (llm.Provider, string, error) {
	name := viper.GetString("provider")
	apiKey := viper.GetString("api_key")

	if name == "" {
		detected, detectedKey := llm.DetectProvider()
		if detected == "" {
			return nil, "", fmt.Errorf("no provider configured: pass --provider or set OPENROUTER_API_KEY, ANTHROPIC_API_KEY, or OPENAI_API_KEY")
		}
		name = detected
		if apiKey == "" {
			apiKey = detectedKey
		}
		log.Debug("auto-detected provider", "provider", name)
	}

	if apiKey == "" {
		resolver, err := config.Load(".")
		if err != nil {
			return nil, "", err
		}
		apiKey = resolver.Get(strings.ToUpper(name) + "_API_KEY")
	}
	if apiKey == "" {
		return nil, "", fmt.Errorf("no API key for provider %s: pass --api-key or set %s_API_KEY", name, strings.ToUpper(name))
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	provider, err := llm.NewProvider(name, llm.ProviderConfig{
		APIKey:  apiKey,
		BaseURL: viper.GetString("base_url"),
		Timeout: timeout,
	})
	if err != nil {
		return nil, "", err
	}
	return provider, name, nil
}
