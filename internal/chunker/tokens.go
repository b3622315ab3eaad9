// ABOUTME: Approximate token estimation for mixed CJK and Latin text
// ABOUTME: CJK ideographs count one each, Latin words one each, other runes one per four
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/harper/ragcore/internal/models"
)

// EstimateTokens approximates the token count of s. It is not a tokenizer:
// each CJK ideograph (U+4E00-U+9FFF) is one token, each whitespace-delimited
// word containing a Latin letter is one token, and every four remaining
// runes count as one token. The result is at least 1 for non-empty input.
func EstimateTokens(s string) (int, error) {
	if s == "" {
		return 0, models.ErrEmptyInput
	}
	return estimate(s), nil
}

func estimate(s string) int {
	cjk, words, other := 0, 0, 0
	for _, field := range strings.Fields(s) {
		latin := false
		rest := 0
		for _, r := range field {
			switch {
			case isCJK(r):
				cjk++
			case isLatinLetter(r):
				latin = true
				rest++
			default:
				rest++
			}
		}
		if latin {
			words++
		} else {
			other += rest
		}
	}

	n := cjk + words + other/4
	if n < 1 {
		n = 1
	}
	return n
}

func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

func isLatinLetter(r rune) bool {
	return r < utf8.RuneSelf && (('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'))
}
