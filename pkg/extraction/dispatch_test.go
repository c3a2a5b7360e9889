package extraction

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/entityxtract/entityxtract/pkg/llm"
)

// scriptedProvider answers by target name embedded in the prompt.
func scriptedProvider(answers map[string]string) *fakeProvider {
	return newFakeProvider(func(req llm.Request, call int) (*llm.Response, error) {
		prompt := promptText(req)
		for name, body := range answers {
			if strings.Contains(prompt, fmt.Sprintf("%q", name)) {
				return jsonResponse(body, 10, 5), nil
			}
		}
		return nil, errors.New("no scripted answer")
	})
}

func sampleTargets() []Target {
	return []Target{
		TableTarget{Name: "line_items", Columns: []string{"description", "amount"}, Required: true},
		StringTarget{Name: "invoice_number", Example: "INV-001", Required: true},
		StringTarget{Name: "vendor", Example: "ACME Corp"},
	}
}

func sampleAnswers() map[string]string {
	return map[string]string{
		"line_items":     `[{"description": "widgets", "amount": 12.5}]`,
		"invoice_number": `{"invoice_number": "INV-042"}`,
		"vendor":         `{"vendor": "ACME Corp"}`,
	}
}

func newTestExtractor(t *testing.T, p llm.Provider) *Extractor {
	t.Helper()
	x, err := New(p, WithLogger(discardLogger()), withSleep((&recordingSleep{}).sleep))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return x
}

func TestExtract_AllTargetsPresent(t *testing.T) {
	targets := sampleTargets()
	x := newTestExtractor(t, scriptedProvider(sampleAnswers()))

	set, err := x.Extract(context.Background(), textDoc("doc"), targets, testConfig())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(set.Results) != len(targets) {
		t.Fatalf("result set has %d entries, want %d", len(set.Results), len(targets))
	}
	for _, target := range targets {
		if _, ok := set.Results[target.TargetName()]; !ok {
			t.Errorf("result set missing target %q", target.TargetName())
		}
	}
	if !set.Success {
		t.Errorf("Success = false, message = %q", set.Message)
	}
	if set.Message != "" {
		t.Errorf("Message = %q, want empty on full success", set.Message)
	}
}

func TestExtract_FailuresAreDataNotErrors(t *testing.T) {
	answers := sampleAnswers()
	delete(answers, "vendor") // vendor target always fails
	x := newTestExtractor(t, scriptedProvider(answers))

	set, err := x.Extract(context.Background(), textDoc("doc"), sampleTargets(), testConfig())
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil (failures are data)", err)
	}

	if len(set.Results) != 3 {
		t.Fatalf("result set has %d entries, want 3 (failed targets are not dropped)", len(set.Results))
	}
	if set.Success {
		t.Error("Success = true with a failed target")
	}
	if set.Message == "" {
		t.Error("Message empty, want failure summary")
	}
	if set.Results["vendor"].Success {
		t.Error("vendor result Success = true, want false")
	}
	if !set.Results["invoice_number"].Success {
		t.Error("sibling target failed; failures must be isolated")
	}
}

func TestExtract_ParallelismDoesNotChangeOutcome(t *testing.T) {
	answers := sampleAnswers()
	delete(answers, "vendor")

	run := func(parallelism int) *ResultSet {
		x := newTestExtractor(t, scriptedProvider(answers))
		cfg := testConfig()
		cfg.Parallelism = parallelism
		set, err := x.Extract(context.Background(), textDoc("doc"), sampleTargets(), cfg)
		if err != nil {
			t.Fatalf("Extract(parallelism=%d) error = %v", parallelism, err)
		}
		return set
	}

	sequential := run(1)
	concurrent := run(4)

	if !reflect.DeepEqual(sequential, concurrent) {
		t.Errorf("parallelism=1 and parallelism=4 disagree:\n%+v\nvs\n%+v", sequential, concurrent)
	}
}

func TestExtract_WorkerPanicIsolated(t *testing.T) {
	provider := newFakeProvider(func(req llm.Request, call int) (*llm.Response, error) {
		if strings.Contains(promptText(req), `"vendor"`) {
			panic("provider bug")
		}
		return jsonResponse(`{"v": 1}`, 1, 1), nil
	})
	x := newTestExtractor(t, provider)

	cfg := testConfig()
	cfg.Parallelism = 4
	set, err := x.Extract(context.Background(), textDoc("doc"), sampleTargets(), cfg)
	if err != nil {
		t.Fatalf("Extract() error = %v, want nil (panic converted to result)", err)
	}

	vendor := set.Results["vendor"]
	if vendor.Success {
		t.Error("panicked target reported success")
	}
	if !strings.Contains(vendor.Message, "provider bug") {
		t.Errorf("Message = %q, want panic detail", vendor.Message)
	}
	if !set.Results["line_items"].Success || !set.Results["invoice_number"].Success {
		t.Error("sibling targets must complete despite the panic")
	}
}

func TestExtract_DuplicateTargetNamesRejected(t *testing.T) {
	x := newTestExtractor(t, scriptedProvider(sampleAnswers()))

	targets := []Target{
		StringTarget{Name: "vendor"},
		TableTarget{Name: "vendor", Columns: []string{"a"}},
	}
	_, err := x.Extract(context.Background(), textDoc("doc"), targets, testConfig())
	if !errors.Is(err, ErrDuplicateTarget) {
		t.Fatalf("Extract() error = %v, want ErrDuplicateTarget", err)
	}
}

func TestExtract_InvalidConfig(t *testing.T) {
	x := newTestExtractor(t, scriptedProvider(sampleAnswers()))
	doc := textDoc("doc")
	targets := []Target{StringTarget{Name: "v"}}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero_retries", func(c *Config) { c.MaxRetries = 0 }},
		{"zero_parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"no_model", func(c *Config) { c.ModelName = "" }},
		{"no_input_modes", func(c *Config) { c.InputModes = nil }},
		{"bad_input_mode", func(c *Config) { c.InputModes = []InputMode{"carrier-pigeon"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := x.Extract(context.Background(), doc, targets, cfg); err == nil {
				t.Error("Extract() error = nil, want validation error")
			}
		})
	}
}

func TestExtract_NoTargets(t *testing.T) {
	x := newTestExtractor(t, scriptedProvider(nil))
	if _, err := x.Extract(context.Background(), textDoc("doc"), nil, testConfig()); err == nil {
		t.Fatal("Extract() error = nil, want error for empty target list")
	}
}

func TestExtract_NoCostLookupWhenDisabled(t *testing.T) {
	provider := &costTrackingProvider{
		fakeProvider: scriptedProvider(sampleAnswers()),
		costs:        []costAnswer{{cost: 9.99}},
	}
	x := newTestExtractor(t, provider)

	cfg := testConfig()
	cfg.CalculateCosts = false
	set, err := x.Extract(context.Background(), textDoc("doc"), sampleTargets(), cfg)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if provider.lookups() != 0 {
		t.Errorf("%d cost lookups issued with calculate_costs=false, want 0", provider.lookups())
	}
	if set.TotalCost != nil {
		t.Errorf("TotalCost = %v, want nil", *set.TotalCost)
	}
}

func TestExtract_CostsPopulatedWhenEnabled(t *testing.T) {
	provider := &costTrackingProvider{
		fakeProvider: scriptedProvider(sampleAnswers()),
		costs:        []costAnswer{{cost: 0.001}},
	}
	x := newTestExtractor(t, provider)

	cfg := testConfig()
	cfg.CalculateCosts = true
	set, err := x.Extract(context.Background(), textDoc("doc"), sampleTargets(), cfg)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	for name, r := range set.Results {
		if r.Cost == nil {
			t.Errorf("result %q has nil cost, want populated", name)
		}
	}
	if set.TotalCost == nil {
		t.Fatal("TotalCost = nil, want sum")
	}
	if diff := *set.TotalCost - 0.003; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalCost = %v, want 0.003", *set.TotalCost)
	}
}
