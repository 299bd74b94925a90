// Package match implements spoken-answer verification for naming trials:
// a shared text normalizer and the lexical matcher that decides whether an
// utterance counts as a correct naming of a stimulus.
//
// Matching is deliberately lexical — exact, whole-word, plural/singular, and
// small-edit-distance equivalence — with no semantic understanding. More
// tunable pipelines for personalized content live in the subpackages
// [github.com/kverrall/namecue/internal/match/personal] and
// [github.com/kverrall/namecue/internal/match/fields].
package match

import "strings"

// Normalize lowercases s, trims surrounding whitespace, strips the
// punctuation characters `.,!?;:'"` and collapses internal whitespace runs to
// single spaces. It is a pure, total function: it never fails and returns ""
// for all-punctuation input.
//
// Every matcher normalizes both sides before comparison so that case and
// punctuation can never cause a false negative.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range strings.ToLower(s) {
		switch r {
		case '.', ',', '!', '?', ';', ':', '\'', '"':
			continue
		case ' ', '\t', '\n', '\r':
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
