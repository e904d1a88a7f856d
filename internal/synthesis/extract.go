// Package synthesis turns free-form model output into a validated SynthesisResult,
// with one repair round-trip and a sentinel fallback.
package synthesis

import (
	"regexp"
	"strings"
)

var (
	thinkSpan   = regexp.MustCompile(`(?is)<think>.*?</think>`)
	fenceMarker = regexp.MustCompile("```[A-Za-z0-9_+-]*")
)

// Clean removes reasoning spans and code-fence markers, then trims whitespace.
// Fenced content is kept.
func Clean(text string) string {
	text = thinkSpan.ReplaceAllString(text, "")
	text = fenceMarker.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractObject cleans text and returns the first balanced JSON object in it. Braces
// inside string literals do not count. Without a '{' the cleaned text is returned;
// for an unbalanced object everything from the first '{' is returned.
func ExtractObject(text string) string {
	text = Clean(text)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}
