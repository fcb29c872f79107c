package llm

import (
	"encoding/json"
	"strings"
)

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// cleanJSON strips markdown fences, isolates the outermost JSON object, and
// closes brackets left open by a truncated answer.
func cleanJSON(text string) string {
	text = stripFences(text)

	start := strings.Index(text, "{")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	text = text[start:]
	if end := strings.LastIndex(text, "}"); end >= 0 && json.Valid([]byte(text[:end+1])) {
		return text[:end+1]
	}
	return repairTruncatedJSON(strings.TrimSpace(text))
}

// repairTruncatedJSON closes any unclosed strings, brackets, or braces.
func repairTruncatedJSON(text string) string {
	if len(text) == 0 {
		return text
	}

	var stack []byte
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString {
			escape = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		text += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		text = strings.TrimRight(text, " \t\n\r,:")
		text += string(stack[i])
	}
	return text
}
