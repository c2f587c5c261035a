package ai

import (
	"strings"
)

// ExtractJSON pulls the JSON document out of a model reply, dropping markdown
// code fences and any prose before or after it.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	start, closing := objStart, "}"
	if start == -1 || (arrStart != -1 && arrStart < objStart) {
		start, closing = arrStart, "]"
	}
	if start == -1 {
		return text
	}

	end := strings.LastIndex(text, closing)
	if end < start {
		return text
	}
	return text[start : end+1]
}
