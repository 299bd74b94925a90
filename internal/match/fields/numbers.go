package fields

import (
	"strings"
	"unicode"
)

// digitWords maps spoken single digits to their character form. "oh" is the
// common spoken form of zero in phone numbers.
var digitWords = map[string]byte{
	"zero": '0', "oh": '0', "one": '1', "two": '2', "three": '3',
	"four": '4', "five": '5', "six": '6', "seven": '7', "eight": '8',
	"nine": '9',
}

// numberWords maps spoken number words to integer values, covering the range
// relevant for counts and days of the month.
var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17,
	"eighteen": 18, "nineteen": 19, "twenty": 20, "thirty": 30,
	"forty": 40, "fifty": 50, "sixty": 60, "seventy": 70,
	"eighty": 80, "ninety": 90,
}

// ordinalWords maps spoken ordinals to day-of-month values.
var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"eleventh": 11, "twelfth": 12, "thirteenth": 13, "fourteenth": 14,
	"fifteenth": 15, "sixteenth": 16, "seventeenth": 17, "eighteenth": 18,
	"nineteenth": 19, "twentieth": 20, "thirtieth": 30, "thirtyfirst": 31,
}

// months maps lowercase month names and their three-letter abbreviations to
// month numbers 1–12.
var months = map[string]int{
	"january": 1, "jan": 1, "february": 2, "feb": 2, "march": 3, "mar": 3,
	"april": 4, "apr": 4, "may": 5, "june": 6, "jun": 6, "july": 7, "jul": 7,
	"august": 8, "aug": 8, "september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10, "november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// digitsOf returns only the decimal digit characters of s, in order.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// spokenDigits converts spoken digit words in s to digit characters and
// keeps literal digits, discarding everything else. "five five five, 12"
// becomes "55512".
func spokenDigits(s string) string {
	var b strings.Builder
	for _, tok := range tokenize(s) {
		if d, ok := digitWords[tok]; ok {
			b.WriteByte(d)
			continue
		}
		b.WriteString(digitsOf(tok))
	}
	return b.String()
}

// spokenNumber decodes a spoken multi-word number phrase like "twenty one"
// into its integer value. Returns (0, false) when s contains a token that is
// not a number word or the phrase is empty.
func spokenNumber(s string) (int, bool) {
	toks := tokenize(s)
	if len(toks) == 0 {
		return 0, false
	}

	total := 0
	for _, tok := range toks {
		v, ok := numberWords[tok]
		if !ok {
			return 0, false
		}
		// "twenty one" = 20 + 1; plain sequences like "one two" would
		// decode as 3, which is acceptable for the count fields this
		// feeds.
		total += v
	}
	return total, true
}

// dayOf extracts a day-of-month value from a single token: a plain number
// ("15"), an ordinal suffix form ("15th", "3rd"), a spoken number word, or a
// spoken ordinal. Returns (0, false) when the token carries no day in 1–31.
func dayOf(tok string) (int, bool) {
	if d := digitsOf(tok); d != "" && d == strings.TrimRight(tok, "stndrdth") {
		if v := atoiSafe(d); v >= 1 && v <= 31 {
			return v, true
		}
		return 0, false
	}
	if v, ok := ordinalWords[tok]; ok {
		return v, true
	}
	if v, ok := numberWords[tok]; ok && v >= 1 && v <= 31 {
		return v, true
	}
	// Compound spoken ordinals like "twenty first".
	return 0, false
}

// atoiSafe parses a digit-only string; it returns 0 for empty or oversized
// input instead of an error.
func atoiSafe(s string) int {
	if s == "" || len(s) > 9 {
		return 0
	}
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

// tokenize lowercases s and splits it into alphanumeric tokens, treating all
// punctuation and whitespace as separators. Hyphenated ordinals such as
// "thirty-first" become the single token "thirtyfirst".
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case r == '-':
			// Join hyphenated compounds.
		default:
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks
}
