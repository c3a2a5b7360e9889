package extraction

import (
	"testing"
)

func intPtr(n int) *int          { return &n }
func floatPtr(f float64) *float64 { return &f }

func TestAggregate_SuccessIsANDOverResults(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    bool
	}{
		{
			name: "all_succeed",
			results: map[string]Result{
				"a": {Success: true},
				"b": {Success: true},
			},
			want: true,
		},
		{
			name: "one_fails",
			results: map[string]Result{
				"a": {Success: true},
				"b": {Success: false},
			},
			want: false,
		},
		{
			name: "all_fail",
			results: map[string]Result{
				"a": {Success: false},
				"b": {Success: false},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := aggregate(tt.results)
			if set.Success != tt.want {
				t.Errorf("Success = %v, want %v", set.Success, tt.want)
			}
			if tt.want && set.Message != "" {
				t.Errorf("Message = %q, want empty on success", set.Message)
			}
			if !tt.want && set.Message == "" {
				t.Error("Message empty, want generic failure summary")
			}
		})
	}
}

func TestAggregate_TotalsSkipNilFields(t *testing.T) {
	set := aggregate(map[string]Result{
		"a": {Success: true, InputTokens: intPtr(100), OutputTokens: intPtr(20), Cost: floatPtr(0.01)},
		"b": {Success: true, InputTokens: intPtr(50)}, // no output tokens, no cost
		"c": {Success: false},                         // reports nothing
	})

	if set.TotalInputTokens == nil || *set.TotalInputTokens != 150 {
		t.Errorf("TotalInputTokens = %v, want 150", set.TotalInputTokens)
	}
	if set.TotalOutputTokens == nil || *set.TotalOutputTokens != 20 {
		t.Errorf("TotalOutputTokens = %v, want 20 (nil fields excluded, not zeroed)", set.TotalOutputTokens)
	}
	if set.TotalCost == nil || *set.TotalCost != 0.01 {
		t.Errorf("TotalCost = %v, want 0.01", set.TotalCost)
	}
}

func TestAggregate_NoReportingResultsYieldsNilTotals(t *testing.T) {
	set := aggregate(map[string]Result{
		"a": {Success: false},
		"b": {Success: false},
	})

	if set.TotalInputTokens != nil {
		t.Errorf("TotalInputTokens = %d, want nil (not zero)", *set.TotalInputTokens)
	}
	if set.TotalOutputTokens != nil {
		t.Errorf("TotalOutputTokens = %d, want nil (not zero)", *set.TotalOutputTokens)
	}
	if set.TotalCost != nil {
		t.Errorf("TotalCost = %f, want nil (not zero)", *set.TotalCost)
	}
}

func TestAggregate_ZeroCountsStillSum(t *testing.T) {
	// A reported zero is a real value, distinct from an absent field.
	set := aggregate(map[string]Result{
		"a": {Success: true, InputTokens: intPtr(0)},
	})
	if set.TotalInputTokens == nil || *set.TotalInputTokens != 0 {
		t.Errorf("TotalInputTokens = %v, want 0 (reported zero)", set.TotalInputTokens)
	}
}
