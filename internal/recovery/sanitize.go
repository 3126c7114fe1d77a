// Package recovery - sanitize.go holds the character-level repair stages.
package recovery

import (
	"regexp"
	"strings"
)

// Sanitize strips markdown code-fence wrappers and replaces stray control
// bytes (everything below 0x20 except \t, \n, \r) with a space. Valid escape
// sequences inside string literals are untouched since they are ordinary
// printable characters at the byte level.
func Sanitize(text string) string {
	text = stripFences(text)

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			sb.WriteRune(' ')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// stripFences removes a ```json / ``` wrapper around the whole payload.
// LLMs often add one even when instructed not to.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language identifier on the first line ("json", "JSON", ...).
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := strings.TrimSpace(text[:idx])
			if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}
	return text
}

var (
	// `"value"\n"next"`: a missing comma between adjacent string values
	// split by a newline, a common provider error.
	missingCommaStrings = regexp.MustCompile(`"[ \t]*\n[ \t]*"`)
	// `}\n{` or `}\n"key"`: a missing comma after a nested object close.
	missingCommaObjects = regexp.MustCompile(`}[ \t]*\n[ \t]*([{"])`)
	// `,}` and `,]`: trailing separators before a closing bracket.
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// RepairSeparators applies the blunt regex repairs of the ladder's third
// stage. These are deliberately not quote-aware; the aggressive stages run
// only after everything gentler has already failed.
func RepairSeparators(text string) string {
	text = missingCommaStrings.ReplaceAllStringFunc(text, func(m string) string {
		return `",` + m[1:]
	})
	text = missingCommaObjects.ReplaceAllString(text, "},\n$1")
	text = trailingComma.ReplaceAllString(text, "$1")
	return text
}

var smartReplacer = strings.NewReplacer(
	"“", `"`, // left double quotation
	"”", `"`, // right double quotation
	"„", `"`, // low double quotation
	"‘", "'", // left single quotation
	"’", "'", // right single quotation
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
	"\uFEFF", "", // byte-order mark
	"​", "", // zero-width space
	"‌", "", // zero-width non-joiner
	"‍", "", // zero-width joiner
)

// AggressiveRepair normalizes typographic characters to ASCII and escapes
// quote characters that appear mid-sentence instead of at a string boundary.
// Last-resort stage: it can mangle valid JSON, so it runs only after every
// gentler stage has failed.
func AggressiveRepair(text string) string {
	text = smartReplacer.Replace(text)

	runes := []rune(text)
	var sb strings.Builder
	sb.Grow(len(text))
	for i, r := range runes {
		if r == '"' && isMidSentenceQuote(runes, i) {
			sb.WriteString(`\"`)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// isMidSentenceQuote reports whether the quote at index i sits inside prose
// (preceded by a letter, comma, or space and followed by a letter) rather
// than at a JSON string boundary.
func isMidSentenceQuote(runes []rune, i int) bool {
	if i == 0 || i == len(runes)-1 {
		return false
	}
	prev, next := runes[i-1], runes[i+1]
	if !isLetter(next) {
		return false
	}
	if runes[i-1] == '\\' {
		return false
	}
	if !(isLetter(prev) || prev == ',' || prev == ' ') {
		return false
	}
	// A quote opening a key or value is preceded by a structural character,
	// possibly with intervening spaces. Those are boundaries, not prose.
	if prev == ' ' || prev == ',' {
		for j := i - 1; j >= 0; j-- {
			switch runes[j] {
			case ' ', '\t', '\n', '\r':
				continue
			case '{', '[', ':', ',':
				return false
			default:
				return true
			}
		}
		return false
	}
	return true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
