// ABOUTME: Boundary detection for paragraphs, sentences and words
// ABOUTME: Units are byte spans into the cleaned source so chunks are exact slices of it
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// span is a byte range [start, end) of the cleaned text with its estimated token count
type span struct {
	start, end int
	tokens     int
}

var (
	inlineSpace = regexp.MustCompile(`[ \t\f\v]+`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// clean normalises line endings and spacing but keeps blank lines,
// which are the paragraph boundaries
func clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func newSpan(text string, start, end int) (span, bool) {
	for start < end {
		r, w := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += w
	}
	for end > start {
		r, w := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= w
	}
	if start >= end {
		return span{}, false
	}
	return span{start: start, end: end, tokens: estimate(text[start:end])}, true
}

// paragraphSpans splits [from, to) on blank lines
func paragraphSpans(text string, from, to int) []span {
	var out []span
	pos := from
	for pos < to {
		end, next := to, to
		if idx := strings.Index(text[pos:to], "\n\n"); idx >= 0 {
			end = pos + idx
			next = end + 2
		}
		if s, ok := newSpan(text, pos, end); ok {
			out = append(out, s)
		}
		pos = next
	}
	return out
}

// sentenceSpans splits [from, to) after sentence terminators. An ASCII
// terminator only ends a sentence when followed by whitespace; CJK
// terminators always do. Trailing quotes and brackets stay with the sentence.
func sentenceSpans(text string, from, to int) []span {
	var out []span
	start := -1
	i := from
	for i < to {
		r, w := utf8.DecodeRuneInString(text[i:to])
		if start < 0 {
			if unicode.IsSpace(r) {
				i += w
				continue
			}
			start = i
		}
		i += w
		if !isTerminator(r) {
			continue
		}
		for i < to {
			r2, w2 := utf8.DecodeRuneInString(text[i:to])
			if !isTerminator(r2) && !isCloser(r2) {
				break
			}
			i += w2
		}
		if isWideTerminator(r) || i >= to || nextIsSpace(text, i, to) {
			if s, ok := newSpan(text, start, i); ok {
				out = append(out, s)
			}
			start = -1
		}
	}
	if start >= 0 {
		if s, ok := newSpan(text, start, to); ok {
			out = append(out, s)
		}
	}
	return out
}

// wordSpans splits [from, to) on whitespace; each CJK ideograph is its own
// unit and runs without Latin letters longer than maxTokens are cut into pieces
func wordSpans(text string, from, to, maxTokens int) []span {
	var out []span
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		out = append(out, cutLong(text, start, end, maxTokens)...)
		start = -1
	}

	for i := from; i < to; {
		r, w := utf8.DecodeRuneInString(text[i:to])
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case isCJK(r):
			flush(i)
			out = append(out, span{start: i, end: i + w, tokens: 1})
		default:
			if start < 0 {
				start = i
			}
		}
		i += w
	}
	flush(to)
	return out
}

func cutLong(text string, start, end, maxTokens int) []span {
	s := span{start: start, end: end, tokens: estimate(text[start:end])}
	if maxTokens <= 0 || s.tokens <= maxTokens {
		return []span{s}
	}

	var out []span
	window := maxTokens * 4
	pos, count := start, 0
	for i := start; i < end; {
		_, w := utf8.DecodeRuneInString(text[i:end])
		i += w
		count++
		if count == window || i == end {
			out = append(out, span{start: pos, end: i, tokens: estimate(text[pos:i])})
			pos, count = i, 0
		}
	}
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '；':
		return true
	}
	return false
}

func isWideTerminator(r rune) bool {
	return r == '。' || r == '！' || r == '？' || r == '；'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '）', '」', '』':
		return true
	}
	return false
}

func nextIsSpace(text string, i, to int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:to])
	return unicode.IsSpace(r)
}
