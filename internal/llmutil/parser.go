// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/plugin-eval/internal/observability"
)

// fenceRegex captures the body of the first markdown code fence, with or
// without a language tag. \x60 is a backtick.
var fenceRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

// ExtractJSON isolates the JSON payload in a model response. It unwraps a code
// fence if present and otherwise trims conversational text around the outermost
// array or object. open selects which bracket pair to prefer ('[' or '{').
func ExtractJSON(response string, open byte) string {
	s := strings.TrimSpace(response)
	if m := fenceRegex.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		return s
	}

	pairs := [][2]string{{"[", "]"}, {"{", "}"}}
	if open == '{' {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}
	for _, p := range pairs {
		first, last := strings.Index(s, p[0]), strings.LastIndex(s, p[1])
		if first != -1 && last > first {
			return s[first : last+1]
		}
	}
	return s
}

// ParseJSONResponse decodes an LLM response into T, tolerating markdown fences
// and surrounding prose.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T
	open := byte('{')
	if looksLikeArray(response) {
		open = '['
	}
	payload := ExtractJSON(response, open)
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s",
			err, observability.Preview(payload, 500))
	}
	return result, nil
}

// looksLikeArray reports whether the first bracket in s opens an array.
func looksLikeArray(s string) bool {
	i := strings.IndexAny(s, "[{")
	return i != -1 && s[i] == '['
}
