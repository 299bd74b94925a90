// Package personal implements the settings-driven answer matcher used for
// personalized-memory content — names of real people and places — where the
// fixed lexical rules of the stimulus matcher are too rigid.
//
// Each leniency stage is gated by a flag in [types.MatchSettings] so that a
// clinician can tighten or relax matching per user. The unconditional floor
// of correctness is an exact match of the normalized strings: that stage runs
// regardless of flags, so turning every flag off still accepts a verbatim
// answer.
package personal

import (
	"strings"

	"github.com/kverrall/namecue/internal/match"
	"github.com/kverrall/namecue/pkg/types"
)

// minPartialAnswerLen guards the "expected contains answer" direction of
// partial matching: one- and zero-character answers would otherwise match
// almost anything.
const minPartialAnswerLen = 2

// overlapThreshold is the minimum fraction of expected tokens that must
// appear in the answer for the word-overlap stage to accept.
const overlapThreshold = 0.5

// Match reports whether answer counts as a correct production of expected
// under the leniency flags in s. Stages are evaluated in order; the first
// accepting stage wins:
//
//  1. Exact match after normalization — always checked — and, when
//     StopWordFiltering is set, exact match after stop-word removal.
//  2. FirstNameOnly: the first tokens of both sides are equal.
//  3. AcceptableAlternatives: exact match against the caller-supplied
//     nickname list.
//  4. PartialMatching: substring containment in either direction, requiring
//     an answer of at least 2 characters for the expected-contains-answer
//     direction.
//  5. WordOverlap: at least half of expected's tokens occur in the answer.
//  6. SynonymMatching: any answer token is a listed synonym of any expected
//     token.
func Match(answer, expected string, alternatives []string, s types.MatchSettings) bool {
	a := match.Normalize(answer)
	e := match.Normalize(expected)
	if a == "" || e == "" {
		return false
	}

	// Stage 1: exact. The plain comparison is the unconditional floor.
	if a == e {
		return true
	}
	if s.StopWordFiltering {
		if fa, fe := stripStopWords(a), stripStopWords(e); fa != "" && fa == fe {
			return true
		}
	}

	// Stage 2: first name only.
	if s.FirstNameOnly {
		if firstToken(a) == firstToken(e) {
			return true
		}
	}

	// Stage 3: acceptable alternatives.
	if s.AcceptableAlternatives {
		for _, alt := range alternatives {
			if na := match.Normalize(alt); na != "" && na == a {
				return true
			}
		}
	}

	// Stage 4: partial containment.
	if s.PartialMatching {
		if strings.Contains(a, e) {
			return true
		}
		if len(a) >= minPartialAnswerLen && strings.Contains(e, a) {
			return true
		}
	}

	// Stage 5: word overlap ratio.
	if s.WordOverlap {
		if overlapRatio(a, e) >= overlapThreshold {
			return true
		}
	}

	// Stage 6: synonym table.
	if s.SynonymMatching {
		for _, at := range strings.Fields(a) {
			for _, et := range strings.Fields(e) {
				if areSynonyms(at, et) {
					return true
				}
			}
		}
	}

	return false
}

// stripStopWords removes stop words from the normalized string s, preserving
// the order of the remaining tokens.
func stripStopWords(s string) string {
	var kept []string
	for _, w := range strings.Fields(s) {
		if _, stop := stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// firstToken returns the first whitespace-separated token of s, or "" when
// s is empty.
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// overlapRatio returns the fraction of expected's tokens that also occur in
// the answer.
func overlapRatio(answer, expected string) float64 {
	expectedTokens := strings.Fields(expected)
	if len(expectedTokens) == 0 {
		return 0
	}

	answerSet := make(map[string]struct{})
	for _, w := range strings.Fields(answer) {
		answerSet[w] = struct{}{}
	}

	found := 0
	for _, w := range expectedTokens {
		if _, ok := answerSet[w]; ok {
			found++
		}
	}
	return float64(found) / float64(len(expectedTokens))
}
