package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/entityxtract/entityxtract/pkg/llm"
)

// Extractor runs concurrent multi-target extractions against one
// provider. Safe for concurrent use.
type Extractor struct {
	provider llm.Provider
	prompts  *PromptProvider
	log      *slog.Logger
	sleep    sleepFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for per-attempt log entries. The
// engine never configures logging itself; pass the handle in.
func WithLogger(log *slog.Logger) Option {
	return func(x *Extractor) { x.log = log }
}

// WithPromptTemplates overrides the built-in prompt templates by tag
// ("system", "table", "string").
func WithPromptTemplates(templates map[string]string) Option {
	return func(x *Extractor) {
		p, err := NewPromptProvider(templates)
		if err == nil {
			x.prompts = p
		}
	}
}

// withSleep replaces the backoff sleep, for deterministic tests.
func withSleep(s sleepFunc) Option {
	return func(x *Extractor) { x.sleep = s }
}

// New creates an Extractor backed by the given provider.
func New(provider llm.Provider, opts ...Option) (*Extractor, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	prompts, err := NewPromptProvider(nil)
	if err != nil {
		return nil, err
	}

	x := &Extractor{
		provider: provider,
		prompts:  prompts,
		log:      slog.Default(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Extract runs one extraction per target across a worker pool bounded by
// cfg.Parallelism and returns the aggregated result set. The result set
// always contains exactly one entry per target, keyed by target name,
// regardless of individual outcomes; per-target failures are reported as
// data, never as a returned error. Errors are returned only for invalid
// input: a bad config, an empty or duplicate-named target list.
func (x *Extractor) Extract(ctx context.Context, doc Document, targets []Target, cfg Config) (*ResultSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no extraction targets given")
	}
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		name := t.TargetName()
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTarget, name)
		}
		seen[name] = struct{}{}
	}

	runLog := x.log.With("run_id", uuid.NewString())

	var tracker llm.CostTracker
	if ct, ok := x.provider.(llm.CostTracker); ok {
		tracker = ct
	}

	exec := &retryExecutor{
		provider: x.provider,
		builder:  &requestBuilder{prompts: x.prompts, cfg: cfg, log: runLog},
		costs: &costResolver{
			tracker: tracker,
			enabled: cfg.CalculateCosts,
			log:     runLog,
			sleep:   x.sleep,
		},
		cfg:   cfg,
		log:   runLog,
		sleep: x.sleep,
	}

	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	runLog.Info("starting extraction",
		"targets", len(targets),
		"parallelism", parallelism,
		"model", cfg.ModelName)

	// Fan-out one executor run per target. Workers never return errors:
	// every failure, including a panic, becomes that target's Result,
	// and all targets run to completion independently.
	results := make([]Result, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(parallelism)

	for i, target := range targets {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					runLog.Error("extraction worker panicked",
						"target", target.TargetName(),
						"panic", r)
					results[i] = Result{
						Success: false,
						Message: fmt.Sprintf("extraction aborted: %v", r),
					}
				}
			}()
			results[i] = exec.run(ctx, doc, target)
			return nil
		})
	}
	_ = g.Wait()

	keyed := make(map[string]Result, len(targets))
	for i, target := range targets {
		keyed[target.TargetName()] = results[i]
	}

	set := aggregate(keyed)
	runLog.Info("extraction complete",
		"success", set.Success,
		"total_input_tokens", tokenValue(set.TotalInputTokens),
		"total_output_tokens", tokenValue(set.TotalOutputTokens))
	return set, nil
}
