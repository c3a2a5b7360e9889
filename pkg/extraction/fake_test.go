package extraction

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/entityxtract/entityxtract/pkg/document"
	"github.com/entityxtract/entityxtract/pkg/llm"
)

// fakeDoc is an in-memory Document.
type fakeDoc struct {
	text      string
	textErr   error
	images    []document.Image
	imagesErr error
	binary    []byte
	mime      string
}

func (d *fakeDoc) Text() (string, error)             { return d.text, d.textErr }
func (d *fakeDoc) Images() ([]document.Image, error) { return d.images, d.imagesErr }
func (d *fakeDoc) Binary() ([]byte, error)           { return d.binary, nil }
func (d *fakeDoc) MimeType() string {
	if d.mime == "" {
		return "text/plain"
	}
	return d.mime
}

func textDoc(text string) *fakeDoc {
	return &fakeDoc{text: text, binary: []byte(text)}
}

// fakeProvider scripts responses per invocation. The script receives the
// request and the 1-based call count for the target named in the prompt.
type fakeProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	total  int
	script func(req llm.Request, call int) (*llm.Response, error)
}

func newFakeProvider(script func(req llm.Request, call int) (*llm.Response, error)) *fakeProvider {
	return &fakeProvider{calls: make(map[string]int), script: script}
}

func (p *fakeProvider) Invoke(ctx context.Context, req llm.Request) (*llm.Response, error) {
	key := promptText(req)
	p.mu.Lock()
	p.calls[key]++
	p.total++
	call := p.calls[key]
	p.mu.Unlock()
	return p.script(req, call)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// promptText returns the first user text part, which carries the
// rendered target prompt.
func promptText(req llm.Request) string {
	for _, msg := range req.Messages {
		if msg.Role != llm.RoleUser {
			continue
		}
		for _, part := range msg.Parts {
			if part.Type == llm.PartText {
				return part.Text
			}
		}
	}
	return ""
}

// jsonResponse builds a normalized response carrying a JSON body and
// token counts.
func jsonResponse(body string, in, out int) *llm.Response {
	return &llm.Response{
		Content:      body,
		Usage:        llm.Usage{InputTokens: &in, OutputTokens: &out},
		Model:        "fake-model",
		GenerationID: "gen-fake",
		Raw:          json.RawMessage(`{"choices":[]}`),
	}
}

// costTrackingProvider wraps a fakeProvider with a scripted CostTracker.
type costTrackingProvider struct {
	*fakeProvider

	costMu    sync.Mutex
	costCalls int
	costs     []costAnswer
}

type costAnswer struct {
	cost float64
	err  error
}

func (p *costTrackingProvider) SupportsGenerationCost() bool { return true }

func (p *costTrackingProvider) FetchGenerationCost(ctx context.Context, generationID string) (float64, error) {
	p.costMu.Lock()
	defer p.costMu.Unlock()
	answer := p.costs[len(p.costs)-1]
	if p.costCalls < len(p.costs) {
		answer = p.costs[p.costCalls]
	}
	p.costCalls++
	return answer.cost, answer.err
}

func (p *costTrackingProvider) lookups() int {
	p.costMu.Lock()
	defer p.costMu.Unlock()
	return p.costCalls
}

// recordingSleep captures requested delays without sleeping.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleep) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
