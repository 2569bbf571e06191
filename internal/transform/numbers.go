package transform

import (
	"strconv"
	"strings"
)

// maxSpelledNumber bounds the integers NumberExpander will spell out.
// Larger digit runs are left as they are.
const maxSpelledNumber = 999_999_999_999

var (
	enOnes = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	enTens = []string{
		"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
	}
	enScales = []struct {
		value int64
		name  string
	}{
		{1_000_000_000, "billion"},
		{1_000_000, "million"},
		{1_000, "thousand"},
	}
)

// NumberExpander returns a transform that replaces integer words with their
// spelled-out form ("23" becomes "twenty three").
//
// Only English is supported. Other languages return ErrUnsupportedLanguage;
// callers log that and run without number expansion.
func NumberExpander(language string) (Func, error) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}

	switch lang {
	case "", "en":
		return expandNumbersEN, nil
	default:
		return nil, ErrUnsupportedLanguage
	}
}

func expandNumbersEN(text string) string {
	words := strings.Fields(text)
	changed := false
	for i, w := range words {
		if spelled, ok := spellEN(w); ok {
			words[i] = spelled
			changed = true
		}
	}

	if !changed {
		return text
	}
	return strings.Join(words, " ")
}

// spellEN spells a single integer word. It reports false for anything that
// is not a plain (optionally negative) integer within range.
func spellEN(word string) (string, bool) {
	if word == "" || word == "-" {
		return "", false
	}

	digits := strings.TrimPrefix(word, "-")
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n > maxSpelledNumber {
		return "", false
	}

	spelled := spellPositiveEN(n)
	if strings.HasPrefix(word, "-") && n != 0 {
		spelled = "minus " + spelled
	}
	return spelled, true
}

func spellPositiveEN(n int64) string {
	if n < 20 {
		return enOnes[n]
	}

	var parts []string
	for _, scale := range enScales {
		if n >= scale.value {
			parts = append(parts, spellHundredsEN(n/scale.value), scale.name)
			n %= scale.value
		}
	}
	if n > 0 {
		parts = append(parts, spellHundredsEN(n))
	}

	return strings.Join(parts, " ")
}

// spellHundredsEN spells 1..999.
func spellHundredsEN(n int64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, enOnes[n/100], "hundred")
		n %= 100
	}

	switch {
	case n == 0:
	case n < 20:
		parts = append(parts, enOnes[n])
	default:
		parts = append(parts, enTens[n/10])
		if n%10 != 0 {
			parts = append(parts, enOnes[n%10])
		}
	}

	return strings.Join(parts, " ")
}
