package narrator

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)

// arabicIndicDigits maps Eastern Arabic numerals to ASCII.
var arabicIndicDigits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// extractNumbers pulls every numeric literal out of a text, tolerating
// thousand separators and Eastern Arabic digits.
func extractNumbers(text string) []float64 {
	ascii := arabicIndicDigits.Replace(text)
	matches := numberPattern.FindAllString(ascii, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		// "1,234.56" and "1,234" both normalize by dropping commas.
		cleaned := strings.ReplaceAll(m, ",", "")
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// numbersGrounded reports whether every number in the narration appears
// in the allowed set within a 1% rounding tolerance. Sign counts: a
// narration flipping a change's direction is ungrounded.
func numbersGrounded(narration string, allowed []float64) bool {
	for _, n := range extractNumbers(narration) {
		if !matchesAny(n, allowed) {
			return false
		}
	}
	return true
}

func matchesAny(n float64, allowed []float64) bool {
	for _, a := range allowed {
		if a == 0 {
			if n == 0 {
				return true
			}
			continue
		}
		if math.Abs(n-a)/math.Abs(a) <= 0.01 {
			return true
		}
	}
	return false
}

// wordCount counts whitespace-separated words.
func wordCount(text string) int {
	return len(strings.Fields(text))
}

// languageMatches checks that the narration's dominant script agrees
// with the envelope language.
func languageMatches(narration, language string) bool {
	arabic, latin := 0, 0
	for _, r := range narration {
		switch {
		case r >= 0x0600 && r <= 0x06FF:
			arabic++
		case unicode.In(r, unicode.Latin):
			latin++
		}
	}
	if language == "ar" {
		return arabic >= latin
	}
	return latin >= arabic
}
