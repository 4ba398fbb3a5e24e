package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSON is returned when content holds no JSON object or array.
var ErrNoJSON = errors.New("parse: no JSON value found")

// JSON decodes the first JSON object or array in content into T. Malformed
// JSON (single quotes, trailing commas, unquoted keys, truncation) is
// repaired once before the decode is retried.
//
//	queries, err := parse.JSON[[]string]("```json\n['a', 'b',]\n```")
func JSON[T any](content string) (T, error) {
	var result T

	candidate, ok := jsonCandidate(content)
	if !ok {
		return result, ErrNoJSON
	}

	err := json.Unmarshal([]byte(candidate), &result)
	if err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr != nil {
		return result, fmt.Errorf("parse: unmarshal %T: %w (repair failed: %v)", result, err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("parse: unmarshal repaired %T: %w", result, err)
	}
	return result, nil
}

// StripCodeFence removes a surrounding markdown code fence, with or without
// a language tag. Content without a fence is returned trimmed.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	} else {
		body = ""
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// jsonCandidate returns content from the first '[' or '{' to the matching
// last ']' or '}'. When no closing bracket exists the tail is returned so
// that the repair step can close it.
func jsonCandidate(content string) (string, bool) {
	content = StripCodeFence(content)
	start := strings.IndexAny(content, "[{")
	if start < 0 {
		return "", false
	}
	closing := "]"
	if content[start] == '{' {
		closing = "}"
	}
	end := strings.LastIndex(content, closing)
	if end < start {
		return content[start:], true
	}
	return content[start : end+1], true
}
