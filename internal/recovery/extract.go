// Package recovery - extract.go isolates a balanced top-level JSON object
// from surrounding prose.
package recovery

// ExtractObject returns the first balanced top-level object in text. Bracket
// matching is quote-aware and escape-aware: braces inside string literals are
// ignored, and backslash escaping (including `\"`) is respected.
func ExtractObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if inString {
				continue
			}
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if inString || depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
