package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var markdownJSONRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// ParseModelJSON extracts and parses a JSON object from model output that may
// contain pure JSON, JSON wrapped in markdown code fences, or JSON embedded
// in surrounding prose.
func ParseModelJSON(input string, target interface{}) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return fmt.Errorf("empty model output")
	}

	// Most common case: the output is already valid JSON
	if err := json.Unmarshal([]byte(input), target); err == nil {
		return nil
	}

	// JSON inside a markdown code fence
	if matches := markdownJSONRegex.FindStringSubmatch(input); len(matches) > 1 {
		if err := json.Unmarshal([]byte(strings.TrimSpace(matches[1])), target); err == nil {
			return nil
		}
	}

	// Outermost {...} span in surrounding text
	start := strings.Index(input, "{")
	end := strings.LastIndex(input, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(input[start:end+1]), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON in model output: %s", truncate(input, 100))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
