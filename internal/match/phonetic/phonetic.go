// Package phonetic recovers naming answers that speech recognition has
// misheard. Recognition engines regularly render an unfamiliar or slurred
// word as a similar-sounding one ("broom" arriving as "brume"), which the
// lexical matcher rejects because the spelling has drifted too far.
//
// The matcher works in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word of the utterance and each accepted name. A name becomes a
//     candidate when any code overlaps.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the name with the
//     highest Jaro-Winkler similarity wins, provided it clears the phonetic
//     threshold. Without any phonetic candidate, a stricter pure-similarity
//     pass applies.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-aligned name to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate is found. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher tests utterances against a stimulus's accepted names by sound.
// Read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match reports the accepted name the utterance most plausibly names by
// sound. When ok is false, name is empty and confidence is 0.
func (m *Matcher) Match(utterance string, names []string) (name string, confidence float64, ok bool) {
	if len(names) == 0 || strings.TrimSpace(utterance) == "" {
		return "", 0, false
	}

	spoken := strings.ToLower(strings.TrimSpace(utterance))
	spokenTokens := strings.Fields(spoken)
	spokenCodes := codesForTokens(spokenTokens)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, n := range names {
		target := strings.ToLower(strings.TrimSpace(n))
		if target == "" {
			continue
		}
		targetTokens := strings.Fields(target)

		soundsAlike := codesOverlap(spokenCodes, codesForTokens(targetTokens))
		score := bestSimilarity(spokenTokens, targetTokens, spoken, target)

		if soundsAlike {
			if score >= m.phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{name: n, score: score, phonetic: true}
			}
		} else if !best.phonetic && score >= m.fuzzyThreshold && score > best.score {
			best = candidate{name: n, score: score}
		}
	}

	if best.name == "" {
		return "", 0, false
	}
	return best.name, best.score, true
}

// codesForTokens returns the union of all Double Metaphone codes for the
// tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity computes the highest Jaro-Winkler similarity between the
// utterance and a name across three comparisons: the full strings, the
// space-stripped strings (a multi-word mishearing of a single word), and
// the best token pair (one spoken word naming the object inside a longer
// sentence).
func bestSimilarity(spokenTokens, targetTokens []string, spoken, target string) float64 {
	score := matchr.JaroWinkler(spoken, target, false)

	if len(spokenTokens) > 1 || len(targetTokens) > 1 {
		joined := strings.Join(spokenTokens, "")
		if s := matchr.JaroWinkler(joined, strings.Join(targetTokens, ""), false); s > score {
			score = s
		}
	}

	for _, st := range spokenTokens {
		for _, tt := range targetTokens {
			if s := matchr.JaroWinkler(st, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}
