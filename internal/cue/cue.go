// Package cue implements the escalating-hint protocol for naming trials.
//
// Each trial walks a stimulus through up to seven cue levels, every level
// revealing a little more about the target word, and ends either when the
// user produces a correct answer or when the answer is revealed after the
// final cue goes unanswered. The [Machine] drives narration through the TTS
// contract, listening through the STT contract, and reports verdicts to the
// caller through [Hooks].
package cue

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kverrall/namecue/pkg/types"
)

// Level is a cue escalation level. Levels run from MinLevel to MaxLevel and
// are strictly increasing within a trial.
type Level int

const (
	// MinLevel is the first cue level: the first letter of the word.
	MinLevel Level = 1

	// MaxLevel is the last cue level: full repetition of the word. An
	// unanswered MaxLevel cue ends the trial with the answer revealed.
	MaxLevel Level = 7
)

// Valid reports whether l is a narratable cue level.
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Text generates the narration for cue level l of stim. Each level is bound
// to one generator; an out-of-range level yields the MaxLevel text.
func Text(l Level, stim *types.Stimulus) string {
	switch l {
	case 1:
		return fmt.Sprintf("The word starts with the letter %s.", strings.ToUpper(stim.Letter()))
	case 2:
		return fmt.Sprintf("It is %s.", stim.Category)
	case 3:
		return sentence(stim.Action)
	case 4:
		return fmt.Sprintf("It goes together with %s.", stim.Association)
	case 5:
		return sentence(stim.Features)
	case 6:
		return fmt.Sprintf("You would usually find it %s.", stim.Location)
	default:
		return fmt.Sprintf("The word is %s. Try saying %s.", stim.Name, stim.Name)
	}
}

// RevealText is the narration spoken exactly once when the trial ends
// without a correct answer.
func RevealText(stim *types.Stimulus) string {
	return fmt.Sprintf("The name of this object is %s.", stim.Name)
}

// sentence upper-cases the first rune of s and terminates it with a period,
// leaving existing terminal punctuation alone.
func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	out := string(runes)
	switch runes[len(runes)-1] {
	case '.', '!', '?':
		return out
	}
	return out + "."
}
