// Package fields implements specialized comparators for structured
// personal-information fields: phone numbers, zip codes, numeric counts, and
// birthdates. Spoken forms are first-class — "five five five one two three
// four" is as valid an answer as "555-1234".
//
// The entry point is [Match], which routes on a field-name key and returns a
// [types.MatchResult] with a confidence of 1.0 on a match and the computed
// text similarity otherwise (0 for the structured fields).
package fields

import (
	"strings"

	"github.com/kverrall/namecue/internal/match"
	"github.com/kverrall/namecue/pkg/types"
)

// Field-name keys recognised by [Match]. Any other key routes to the generic
// text comparator.
const (
	FieldPhoneNumber      = "phone_number"
	FieldZipCode          = "address_zip"
	FieldNumberOfChildren = "number_of_children"
	FieldDateOfBirth      = "date_of_birth"
)

// minPhoneSuffixDigits is the minimum number of user-supplied digits required
// for the ends-with partial-recall credit on phone numbers.
const minPhoneSuffixDigits = 4

// jaccardThreshold is the minimum word-Jaccard similarity for the generic
// text comparator to accept.
const jaccardThreshold = 0.7

// Match compares a spoken answer against the expected value of a structured
// field, selecting the comparator by field key.
func Match(field, answer, expected string) types.MatchResult {
	switch field {
	case FieldPhoneNumber:
		return boolResult(matchPhoneNumber(answer, expected))
	case FieldZipCode:
		return boolResult(matchZipCode(answer, expected))
	case FieldNumberOfChildren:
		return boolResult(matchNumber(answer, expected))
	case FieldDateOfBirth:
		return boolResult(matchDate(answer, expected))
	default:
		return matchText(answer, expected)
	}
}

// boolResult wraps a structured-field verdict: confidence is 1.0 on a match
// and 0 otherwise, since no meaningful similarity score exists for digits.
func boolResult(ok bool) types.MatchResult {
	if ok {
		return types.MatchResult{IsCorrect: true, Confidence: 1.0}
	}
	return types.MatchResult{IsCorrect: false, Confidence: 0}
}

// matchPhoneNumber compares digit-only projections of both strings, trying
// the spoken-word conversion of the answer as well. When the user supplied at
// least 4 digits, an expected number that ends with those digits counts as a
// match (partial recall credit for the local part).
func matchPhoneNumber(answer, expected string) bool {
	want := digitsOf(expected)
	if want == "" {
		return false
	}

	for _, got := range answerDigits(answer) {
		if got == want {
			return true
		}
		if len(got) >= minPhoneSuffixDigits && strings.HasSuffix(want, got) {
			return true
		}
	}
	return false
}

// matchZipCode compares digit-only projections, raw and spoken-converted.
func matchZipCode(answer, expected string) bool {
	want := digitsOf(expected)
	if want == "" {
		return false
	}
	for _, got := range answerDigits(answer) {
		if got == want {
			return true
		}
	}
	return false
}

// answerDigits returns the candidate digit projections of a spoken answer:
// the literal digits and, when different, the spoken-word conversion.
func answerDigits(answer string) []string {
	raw := digitsOf(answer)
	spoken := spokenDigits(answer)

	var out []string
	if raw != "" {
		out = append(out, raw)
	}
	if spoken != "" && spoken != raw {
		out = append(out, spoken)
	}
	return out
}

// matchNumber compares integer values: a literal parse of the answer's
// digits, the decoded spoken phrase, or any single number word in the
// utterance that decodes to the expected value.
func matchNumber(answer, expected string) bool {
	want, ok := expectedNumber(expected)
	if !ok {
		return false
	}

	if d := digitsOf(answer); d != "" && atoiSafe(d) == want {
		return true
	}
	if v, ok := spokenNumber(answer); ok && v == want {
		return true
	}
	for _, tok := range tokenize(answer) {
		if v, ok := numberWords[tok]; ok && v == want {
			return true
		}
	}
	return false
}

// expectedNumber parses the expected side of a numeric field, accepting
// either digits or a spoken phrase.
func expectedNumber(expected string) (int, bool) {
	if d := digitsOf(expected); d != "" {
		return atoiSafe(d), true
	}
	return spokenNumber(expected)
}

// matchDate extracts the month and day-of-month independently from both
// strings. A full match requires the months to agree and, when both sides
// carry a day, the days to agree as well. Month agreement with a day missing
// on either side is accepted as sufficient (partial credit).
func matchDate(answer, expected string) bool {
	am, ad, aok := extractDate(answer)
	em, ed, eok := extractDate(expected)
	if !aok || !eok {
		return false
	}
	if am != em {
		return false
	}
	if ad != 0 && ed != 0 && ad != ed {
		return false
	}
	return true
}

// extractDate scans s for a month name and a day-of-month. The returned day
// is 0 when none was found; ok is false when no month was found.
func extractDate(s string) (month, day int, ok bool) {
	toks := tokenize(s)
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if m, found := months[tok]; found && month == 0 {
			month = m
			continue
		}
		if day != 0 {
			continue
		}
		// Compound spoken ordinals ("twenty first") take precedence over
		// the bare tens word.
		if i+1 < len(toks) {
			if tens := numberWords[tok]; tens == 20 || tens == 30 {
				if unit, found := ordinalWords[toks[i+1]]; found && unit < 10 {
					day = tens + unit
					i++
					continue
				}
			}
		}
		if d, found := dayOf(tok); found {
			day = d
		}
	}
	return month, day, month != 0
}

// matchText is the generic comparator for free-text fields: exact after
// normalization, substring containment in either direction, or word-Jaccard
// similarity at or above 0.7. The similarity score doubles as the confidence
// on rejection.
func matchText(answer, expected string) types.MatchResult {
	a := match.Normalize(answer)
	e := match.Normalize(expected)
	if a == "" || e == "" {
		return types.MatchResult{}
	}

	if a == e || strings.Contains(a, e) || strings.Contains(e, a) {
		return types.MatchResult{IsCorrect: true, Confidence: 1.0}
	}

	sim := jaccard(a, e)
	if sim >= jaccardThreshold {
		return types.MatchResult{IsCorrect: true, Confidence: 1.0}
	}
	return types.MatchResult{IsCorrect: false, Confidence: sim}
}

// jaccard computes word-level Jaccard similarity between two normalized
// strings: |intersection| / |union| of their token sets.
func jaccard(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}

	inter := 0
	for w := range as {
		if _, ok := bs[w]; ok {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
