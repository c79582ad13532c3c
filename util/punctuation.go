package util

import (
	"unicode"
)

// IsPunctuation reports whether s is non-empty and made only of punctuation,
// symbols, CJK punctuation or full-width forms. Corpus tokens like this end
// a sentence.
func IsPunctuation(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isPunct(r) {
			return false
		}
	}
	return true
}

func isPunct(r rune) bool {
	if unicode.IsPunct(r) || unicode.IsSymbol(r) {
		return true
	}
	// CJK Symbols and Punctuation
	if r >= 0x3000 && r <= 0x303F {
		return true
	}
	// Full-width ASCII punctuation only; full-width letters and digits are text
	if r >= 0xFF00 && r <= 0xFFEF {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}
	return false
}
