// Package preprocess normalizes captured text before it is translated.
package preprocess

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize prepares captured text for a backend. With keepParagraph the line
// structure is left intact (only line endings and outer whitespace change).
// Without it, lines inside a paragraph are reflowed into one line: words split
// by a trailing hyphen are rejoined, CJK text is joined without spaces, and blank
// lines still separate paragraphs.
func Normalize(text string, keepParagraph bool) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if keepParagraph {
		return strings.TrimSpace(text)
	}

	var paragraphs []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			paragraphs = append(paragraphs, current.String())
			current.Reset()
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := collapseSpaces(strings.TrimSpace(raw))
		if line == "" {
			flush()
			continue
		}
		if current.Len() == 0 {
			current.WriteString(line)
			continue
		}
		joined := joinLines(current.String(), line)
		current.Reset()
		current.WriteString(joined)
	}
	flush()

	return strings.Join(paragraphs, "\n")
}

func joinLines(prev, next string) string {
	last, _ := utf8.DecodeLastRuneInString(prev)
	first, _ := utf8.DecodeRuneInString(next)

	if last == '-' && len(prev) > 1 {
		beforeHyphen, _ := utf8.DecodeLastRuneInString(prev[:len(prev)-1])
		if unicode.IsLetter(beforeHyphen) && unicode.IsLower(first) {
			return prev[:len(prev)-1] + next
		}
	}
	if isCJK(last) || isCJK(first) {
		return prev + next
	}
	return prev + " " + next
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // full-width forms
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
