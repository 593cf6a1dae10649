// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import "strings"

// ExtractJSON returns the first balanced JSON object or array in text,
// or "" when none is present. Markdown code fences are stripped first,
// since models routinely wrap JSON in ```json blocks despite
// instructions not to.
func ExtractJSON(text string) string {
	text = StripFences(strings.TrimSpace(text))

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}

	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// StripFences removes a surrounding markdown code fence, with or
// without a language tag.
func StripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := text[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "" etc.).
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
