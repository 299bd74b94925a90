package cue

import (
	"github.com/kverrall/namecue/internal/match"
	"github.com/kverrall/namecue/internal/match/personal"
	"github.com/kverrall/namecue/internal/match/phonetic"
	"github.com/kverrall/namecue/internal/transcript"
	"github.com/kverrall/namecue/pkg/types"
)

// Evaluator decides whether an utterance counts as a correct naming of the
// active stimulus. It returns the extracted answer candidate alongside the
// verdict so the caller can log what the user actually said.
type Evaluator interface {
	Evaluate(utterance string, stim *types.Stimulus) (answer string, result types.MatchResult)
}

// EvaluatorFunc adapts a function to the [Evaluator] interface.
type EvaluatorFunc func(utterance string, stim *types.Stimulus) (string, types.MatchResult)

// Evaluate implements [Evaluator].
func (f EvaluatorFunc) Evaluate(utterance string, stim *types.Stimulus) (string, types.MatchResult) {
	return f(utterance, stim)
}

// LexicalEvaluator is the default [Evaluator] for naming trials: it extracts
// the likely answer from the spoken sentence and runs the lexical matcher
// against both the raw utterance and the extracted candidate, so a match is
// never lost to an over-eager extraction.
type LexicalEvaluator struct{}

var _ Evaluator = LexicalEvaluator{}

// Evaluate implements [Evaluator].
func (LexicalEvaluator) Evaluate(utterance string, stim *types.Stimulus) (string, types.MatchResult) {
	answer := transcript.ExtractAnswer(utterance)

	if match.Answer(utterance, stim) || match.Answer(answer, stim) {
		return answer, types.MatchResult{IsCorrect: true, Confidence: 1.0}
	}
	return answer, match.Evaluate(answer, stim)
}

// SettingsEvaluator applies a user's configurable leniency settings on top of
// the lexical matcher. The strict lexical stages always run; the
// settings-gated personal stages only widen what counts as correct, so
// disabling every flag reduces to exact comparison.
type SettingsEvaluator struct {
	Settings types.MatchSettings
}

var _ Evaluator = SettingsEvaluator{}

// Evaluate implements [Evaluator].
func (e SettingsEvaluator) Evaluate(utterance string, stim *types.Stimulus) (string, types.MatchResult) {
	answer := transcript.ExtractAnswer(utterance)

	if match.Answer(utterance, stim) || match.Answer(answer, stim) {
		return answer, types.MatchResult{IsCorrect: true, Confidence: 1.0}
	}
	if personal.Match(answer, stim.Name, stim.Alternatives, e.Settings) ||
		personal.Match(utterance, stim.Name, stim.Alternatives, e.Settings) {
		return answer, types.MatchResult{IsCorrect: true, Confidence: 1.0}
	}
	// Recognition engines render unfamiliar words by sound ("broom" arriving
	// as "brume"), so a phonetic pass runs before the answer is written off.
	if _, conf, ok := soundsLike.Match(answer, stim.Names()); ok {
		return answer, types.MatchResult{IsCorrect: true, Confidence: conf}
	}
	return answer, match.Evaluate(answer, stim)
}

// soundsLike recovers answers that speech recognition has misheard. Shared
// across evaluators; the matcher is stateless after construction.
var soundsLike = phonetic.New()
