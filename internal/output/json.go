package output

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"

	"github.com/entityxtract/entityxtract/pkg/extraction"
)

// JSONWriter writes the whole result set as one JSON document.
type JSONWriter struct {
	w      io.Writer
	pretty bool
	indent string
}

// Write serializes the result set.
func (w *JSONWriter) Write(set *extraction.ResultSet) error {
	bw := bufio.NewWriter(w.w)

	var output []byte
	var err error
	if w.pretty {
		output, err = json.MarshalIndent(set, "", w.indent)
	} else {
		output, err = json.Marshal(set)
	}
	if err != nil {
		return err
	}

	if _, err := bw.Write(output); err != nil {
		return err
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// JSONLWriter writes one JSON line per target result, in target-name
// order, followed by a summary line with the aggregate fields.
type JSONLWriter struct {
	w io.Writer
}

type jsonlResult struct {
	Target string `json:"target"`
	extraction.Result
}

type jsonlSummary struct {
	Summary           bool     `json:"summary"`
	Success           bool     `json:"success"`
	Message           string   `json:"message,omitempty"`
	TotalInputTokens  *int     `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int     `json:"total_output_tokens,omitempty"`
	TotalCost         *float64 `json:"total_cost,omitempty"`
}

// Write serializes the result set as JSON lines.
func (w *JSONLWriter) Write(set *extraction.ResultSet) error {
	bw := bufio.NewWriter(w.w)
	enc := json.NewEncoder(bw)

	names := make([]string, 0, len(set.Results))
	for name := range set.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := enc.Encode(jsonlResult{Target: name, Result: set.Results[name]}); err != nil {
			return err
		}
	}

	err := enc.Encode(jsonlSummary{
		Summary:           true,
		Success:           set.Success,
		Message:           set.Message,
		TotalInputTokens:  set.TotalInputTokens,
		TotalOutputTokens: set.TotalOutputTokens,
		TotalCost:         set.TotalCost,
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}
