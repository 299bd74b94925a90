// Package transcript turns raw speech-recognition output into answer
// candidates. Spoken answers rarely arrive as bare words — users say "um,
// that's a broom, I think" — so the extractor peels carrier phrases and
// filler words off the transcript before it reaches the matchers.
//
// Extraction is deliberately heuristic, not a parse: it never fails, it only
// degrades to a best guess.
package transcript

import (
	"regexp"
	"strings"

	"github.com/kverrall/namecue/internal/match"
)

// carrierPatterns are tried in order against the trimmed transcript; the
// first capture group of the first matching pattern is taken as the answer.
var carrierPatterns = []*regexp.Regexp{
	// "that's a broom" / "this is the broom" / "it is a broom"
	regexp.MustCompile(`(?i)\b(?:that'?s|this is|it'?s|it is)\s+(?:a|an|the)\s+(.+)$`),
	regexp.MustCompile(`(?i)\b(?:that'?s|this is|it'?s|it is)\s+(.+)$`),
	// "I think it's a broom" / "I think broom"
	regexp.MustCompile(`(?i)\bi\s+(?:think|believe|guess)\s+(?:it'?s\s+|it is\s+|that'?s\s+)?(?:a\s+|an\s+|the\s+)?(.+)$`),
	// "looks like a broom" / "maybe a broom"
	regexp.MustCompile(`(?i)\b(?:looks like|maybe|probably)\s+(?:a\s+|an\s+|the\s+)?(.+)$`),
	// "broom is good" / "broom is my answer"
	regexp.MustCompile(`(?i)^(.+?)\s+is\s+(?:good|right|correct|my answer)\b`),
	// "it's called a broom"
	regexp.MustCompile(`(?i)\bcalled\s+(?:a\s+|an\s+|the\s+)?(.+)$`),
}

// fillerWords are discarded by the fallback extraction path. Loaded once;
// never mutated.
var fillerWords = map[string]struct{}{
	"um": {}, "uh": {}, "er": {}, "hmm": {}, "hm": {}, "ah": {}, "oh": {},
	"the": {}, "a": {}, "an": {}, "like": {}, "so": {}, "well": {},
	"its": {}, "thats": {}, "is": {}, "it": {}, "yeah": {}, "okay": {},
}

// maxFallbackWords bounds the number of trailing words the fallback path
// keeps — the answer almost always sits at the end of the utterance.
const maxFallbackWords = 3

// ExtractAnswer pulls the likely answer out of a full spoken sentence.
//
// It first tries the carrier-phrase patterns ("that's a X" → "X"); when none
// match it strips filler words and returns the last up-to-3 remaining words.
// When even that leaves nothing, the trimmed raw transcript is returned, so
// the result is empty only for an empty input.
func ExtractAnswer(transcript string) string {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return ""
	}

	for _, p := range carrierPatterns {
		if m := p.FindStringSubmatch(trimmed); m != nil {
			if answer := match.Normalize(m[1]); answer != "" {
				return answer
			}
		}
	}

	// Fallback: drop fillers, keep the tail.
	words := strings.Fields(match.Normalize(trimmed))
	kept := words[:0]
	for _, w := range words {
		if _, filler := fillerWords[w]; !filler {
			kept = append(kept, w)
		}
	}
	if len(kept) > maxFallbackWords {
		kept = kept[len(kept)-maxFallbackWords:]
	}
	if len(kept) > 0 {
		return strings.Join(kept, " ")
	}

	return trimmed
}
