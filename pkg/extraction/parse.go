package extraction

import (
	"encoding/json"
	"strings"

	"github.com/entityxtract/entityxtract/pkg/llm"
)

// stripCodeFence removes a markdown code-block wrapper from a model
// response. Some models wrap their JSON output in ```json ... ``` even
// when told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}

	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// parseResponse normalizes a model response into structured data. Any
// successfully-parsed JSON body counts as structured data; a parse
// failure is classified as retryable via ParseError, never fatal.
func parseResponse(resp *llm.Response) (any, error) {
	content := stripCodeFence(resp.Content)

	var data any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, &ParseError{Err: err, Content: resp.Content}
	}
	return data, nil
}
