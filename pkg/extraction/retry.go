package extraction

import (
	"context"
	"log/slog"
	"time"

	"github.com/entityxtract/entityxtract/pkg/llm"
)

// backoffCap bounds the inter-retry sleep at 8 seconds.
const backoffCap = 8 * time.Second

// sleepFunc waits for the given duration or until the context is done.
// Injected so tests can assert backoff timelines without sleeping.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay returns min(2^(attempt-1), 8) seconds for attempt >= 1.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<(attempt-1)) * time.Second
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// retryExecutor drives one target's request→invoke→parse cycle through
// a bounded retry loop. All failures are converted to a Result at this
// boundary; nothing propagates as an error past it.
type retryExecutor struct {
	provider llm.Provider
	builder  *requestBuilder
	costs    *costResolver
	cfg      Config
	log      *slog.Logger
	sleep    sleepFunc
}

// run makes up to cfg.MaxRetries total attempts and returns the target's
// terminal Result. The last attempt's diagnostic metadata (tokens, raw
// payload) is retained even when every attempt failed.
func (e *retryExecutor) run(ctx context.Context, doc Document, target Target) Result {
	log := e.log.With("target", target.TargetName())

	var lastErr error
	var lastResp *llm.Response

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(attempt - 1)
			log.Debug("backing off before retry", "attempt", attempt, "delay", delay)
			if err := e.sleep(ctx, delay); err != nil {
				lastErr = &TransportError{Err: err}
				break
			}
		}

		resp, data, err := e.attempt(ctx, doc, target)
		if resp != nil {
			lastResp = resp
		}
		if err == nil {
			log.Debug("extraction succeeded",
				"attempt", attempt,
				"input_tokens", tokenValue(resp.Usage.InputTokens),
				"output_tokens", tokenValue(resp.Usage.OutputTokens))
			result := Result{
				ExtractedData: data,
				RawResponse:   resp.Raw,
				Success:       true,
				Message:       "extraction successful",
				InputTokens:   resp.Usage.InputTokens,
				OutputTokens:  resp.Usage.OutputTokens,
			}
			result.Cost = e.costs.resolve(ctx, resp)
			return result
		}

		lastErr = err
		log.Warn("extraction attempt failed",
			"attempt", attempt,
			"max_retries", e.cfg.MaxRetries,
			"error", err)

		if !isRetryable(err) {
			break
		}
	}

	result := Result{
		Success: false,
		Message: lastErr.Error(),
	}
	if lastResp != nil {
		result.RawResponse = lastResp.Raw
		result.InputTokens = lastResp.Usage.InputTokens
		result.OutputTokens = lastResp.Usage.OutputTokens
		result.Cost = e.costs.resolve(ctx, lastResp)
	}
	return result
}

// attempt performs one build→invoke→parse cycle. The response is
// returned even when parsing failed so diagnostics survive.
func (e *retryExecutor) attempt(ctx context.Context, doc Document, target Target) (*llm.Response, any, error) {
	req, err := e.builder.build(doc, target)
	if err != nil {
		return nil, nil, err
	}

	resp, err := e.provider.Invoke(ctx, req)
	if err != nil {
		return nil, nil, &TransportError{Err: err}
	}

	data, err := parseResponse(resp)
	if err != nil {
		return resp, nil, err
	}
	return resp, data, nil
}

func tokenValue(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
