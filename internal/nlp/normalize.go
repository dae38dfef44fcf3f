// Package nlp provides text normalization for mixed Arabic/English input.
// The folded form it produces is the only key used for alias lookups and
// fuzzy comparison anywhere in Borsa.
package nlp

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Script classifications.
const (
	ScriptArabic = "ar"
	ScriptLatin  = "en"
	ScriptMixed  = "mixed"
)

// NormalizedText is the output of Normalize.
type NormalizedText struct {
	Original   string
	Normalized string
	Script     string
	Tokens     []string
}

const arabicTatweel = 'ـ'

// arabicLetterFold maps orthographic variants to a single chat-speech form.
var arabicLetterFold = map[rune]rune{
	'أ': 'ا', // أ → ا
	'إ': 'ا', // إ → ا
	'آ': 'ا', // آ → ا
	'ى': 'ي', // ى → ي
	'ة': 'ه', // ة → ه
	'ؤ': 'و', // ؤ → و
	'ئ': 'ي', // ئ → ي
}

func isArabicDiacritic(r rune) bool {
	return r >= 'ً' && r <= 'ْ'
}

func isArabicLetter(r rune) bool {
	switch {
	case r >= 0x0600 && r <= 0x06FF:
		return true
	case r >= 0x0750 && r <= 0x077F:
		return true
	case r >= 0x08A0 && r <= 0x08FF:
		return true
	}
	return false
}

func isLatinLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// Normalize folds text into the canonical lookup form. It is a pure
// function: equal inputs always produce equal outputs.
func Normalize(text string) NormalizedText {
	nfc := norm.NFC.String(text)

	var b strings.Builder
	b.Grow(len(nfc))

	for _, r := range nfc {
		if r == arabicTatweel || isArabicDiacritic(r) {
			continue
		}
		if folded, ok := arabicLetterFold[r]; ok {
			r = folded
		}
		if r >= 'A' && r <= 'Z' {
			r = r + ('a' - 'A')
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			// Punctuation and symbols become token boundaries.
			b.WriteRune(' ')
		}
	}

	normalized := strings.Join(strings.Fields(b.String()), " ")

	return NormalizedText{
		Original:   text,
		Normalized: normalized,
		Script:     detectScript(nfc),
		Tokens:     strings.Fields(normalized),
	}
}

// Fold returns just the normalized string. Alias insertion uses this so
// alias_norm can only ever be a Normalize product.
func Fold(text string) string {
	return Normalize(text).Normalized
}

// detectScript classifies by majority letter script.
func detectScript(text string) string {
	var arabic, latin int
	for _, r := range text {
		switch {
		case isArabicLetter(r):
			arabic++
		case isLatinLetter(r):
			latin++
		}
	}
	switch {
	case arabic > latin:
		return ScriptArabic
	case latin > arabic:
		return ScriptLatin
	default:
		return ScriptMixed
	}
}
