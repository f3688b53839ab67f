package validate

import (
	"regexp"
	"unicode/utf8"
)

// urlWeight is the fixed character cost X assigns to any URL, which it
// shortens through t.co regardless of the original length.
const urlWeight = 23

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// runeLength counts characters as Unicode code points.
func runeLength(s string) int {
	return utf8.RuneCountInString(s)
}

// weightedLength counts text the way X does: every URL costs a flat 23, runes
// in the light ranges (Latin, general punctuation) cost 1, and everything else
// (CJK, emoji, most symbols) costs 2.
func weightedLength(s string) int {
	total := 0

	rest := urlPattern.ReplaceAllStringFunc(s, func(string) string {
		total += urlWeight
		return ""
	})

	for _, r := range rest {
		if lightWeight(r) {
			total++
		} else {
			total += 2
		}
	}
	return total
}

// lightWeight reports whether r falls in one of the weight-1 ranges of X's
// counting configuration.
func lightWeight(r rune) bool {
	switch {
	case r <= 0x10FF: // Latin, Greek, Cyrillic, Hebrew, Arabic, ...
		return true
	case r >= 0x2000 && r <= 0x200D: // general punctuation spaces, ZWJ
		return true
	case r >= 0x2010 && r <= 0x201F: // dashes and quotes
		return true
	case r >= 0x2032 && r <= 0x2037: // primes
		return true
	default:
		return false
	}
}

// containsInvalidChars reports whether s contains code points X rejects
// outright (BOM, directionality overrides, non-characters).
func containsInvalidChars(s string) bool {
	for _, r := range s {
		switch r {
		case 0xFFFE, 0xFEFF, 0xFFFF, 0x202A, 0x202B, 0x202C, 0x202D, 0x202E:
			return true
		}
	}
	return false
}
