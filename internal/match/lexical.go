package match

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/kverrall/namecue/pkg/types"
)

// shortTargetLen is the normalized target length at or below which only one
// Levenshtein edit is tolerated; longer targets tolerate two.
const shortTargetLen = 5

// Answer reports whether utterance counts as a correct naming of stim.
//
// For the canonical name and each alternative, the following stages are
// evaluated in order and the first hit wins:
//
//  1. Bounded whole-word containment of the target inside the utterance,
//     so carrier phrases like "I think it's a broom" match "broom".
//  2. Exact equality of the normalized strings.
//  3. Plural/singular equivalence: appending "s"/"es" to either side, or
//     stripping a trailing "s"/"es" from either side.
//  4. Levenshtein fuzzy equality on the normalized strings. The tolerated
//     distance is 1 for targets of length <= 5 and 2 otherwise, and the
//     utterance must be at most 2 characters shorter than the target so a
//     truncated fragment cannot match a long word by chance.
func Answer(utterance string, stim *types.Stimulus) bool {
	user := Normalize(utterance)
	if user == "" {
		return false
	}

	for _, name := range stim.Names() {
		target := Normalize(name)
		if target == "" {
			continue
		}
		if containsWord(user, target) {
			return true
		}
		if user == target {
			return true
		}
		if pluralEqual(user, target) {
			return true
		}
		if fuzzyEqual(user, target) {
			return true
		}
	}
	return false
}

// Evaluate runs [Answer] and attaches a confidence score: 1.0 on a match,
// otherwise the best Jaro-Winkler similarity between the utterance and any
// accepted name of the stimulus.
func Evaluate(utterance string, stim *types.Stimulus) types.MatchResult {
	if Answer(utterance, stim) {
		return types.MatchResult{IsCorrect: true, Confidence: 1.0}
	}

	user := Normalize(utterance)
	best := 0.0
	for _, name := range stim.Names() {
		if s := matchr.JaroWinkler(user, Normalize(name), false); s > best {
			best = s
		}
	}
	return types.MatchResult{IsCorrect: false, Confidence: best}
}

// containsWord reports whether target occurs as a bounded whole word (or
// whole-word sequence) inside phrase. Both arguments must already be
// normalized.
func containsWord(phrase, target string) bool {
	words := strings.Fields(phrase)
	targetWords := strings.Fields(target)
	if len(targetWords) == 0 || len(targetWords) > len(words) {
		return false
	}

	for i := 0; i+len(targetWords) <= len(words); i++ {
		found := true
		for j, tw := range targetWords {
			if words[i+j] != tw {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

// pluralEqual reports whether a and b differ only by a trailing "s" or "es".
func pluralEqual(a, b string) bool {
	if a == b {
		return true
	}
	for _, suffix := range []string{"s", "es"} {
		if a+suffix == b || b+suffix == a {
			return true
		}
	}
	return false
}

// fuzzyEqual reports whether user is within the tolerated Levenshtein
// distance of target. Targets of length <= shortTargetLen tolerate one edit,
// longer targets two. The user answer must be no more than 2 characters
// shorter than the target.
func fuzzyEqual(user, target string) bool {
	if len(user) < len(target)-2 {
		return false
	}
	limit := 1
	if len(target) > shortTargetLen {
		limit = 2
	}
	return matchr.Levenshtein(user, target) <= limit
}
