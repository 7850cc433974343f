package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParseFailed is returned when content is not JSON, either bare or
// inside a markdown code fence.
var ErrParseFailed = errors.New("failed to parse content")

const fence = "```"

// Unfence returns the body of the first markdown code fence in content,
// dropping any language tag on the opening line. Content without a
// complete fence is returned trimmed.
func Unfence(content string) string {
	content = strings.TrimSpace(content)

	_, rest, ok := strings.Cut(content, fence)
	if !ok {
		return content
	}
	body, _, ok := strings.Cut(rest, fence)
	if !ok {
		return content
	}

	if tag, after, found := strings.Cut(body, "\n"); found && !strings.ContainsAny(tag, " \t{[") {
		body = after
	}
	return strings.TrimSpace(body)
}

// Parse decodes content as JSON into T, retrying on the body of a code
// fence when the content is prose around a JSON block.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	if body := Unfence(content); body != content {
		var fenced T
		if err := json.Unmarshal([]byte(body), &fenced); err == nil {
			return fenced, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, truncate(content, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
