package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSONResponse strips markdown fences and any prose around the outermost JSON object
func CleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		response = response[start : end+1]
	}

	return strings.TrimSpace(response)
}

// ParseJSONResponse decodes a model response into target. Trailing data after
// the object is rejected.
func ParseJSONResponse(response string, target interface{}) error {
	cleaned := CleanJSONResponse(response)
	if cleaned == "" {
		return fmt.Errorf("empty response")
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decoding response: unexpected data after JSON object")
	}
	return nil
}
