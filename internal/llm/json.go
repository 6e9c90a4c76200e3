package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSONObject = errors.New("llm: no json object in response")

// DecodeJSON unmarshals the outermost {...} span of an LLM reply. Models
// wrap JSON in prose or code fences often enough that the raw text cannot be
// trusted to parse.
func DecodeJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return errNoJSONObject
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("llm: decode json: %w", err)
	}
	return nil
}
