package ai

import (
	"fmt"
	"strings"
)

// CleanJSONResponse strips markdown code fences and any prose surrounding the
// outermost JSON value. Models occasionally wrap structured output despite
// being asked for bare JSON.
func CleanJSONResponse(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return text, nil
	}

	// Fall back to the outermost brace/bracket pair.
	objStart := strings.IndexAny(text, "{[")
	if objStart < 0 {
		return "", fmt.Errorf("response contains no JSON value")
	}
	closer := "}"
	if text[objStart] == '[' {
		closer = "]"
	}
	objEnd := strings.LastIndex(text, closer)
	if objEnd <= objStart {
		return "", fmt.Errorf("response contains an unterminated JSON value")
	}
	return text[objStart : objEnd+1], nil
}
