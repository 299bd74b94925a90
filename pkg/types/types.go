// Package types defines the shared types used across all Namecue packages.
//
// These types form the lingua franca between the matchers, the cue engine,
// the providers, and the storage layer. They are intentionally minimal — each
// package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

// Stimulus is the target concept one practice trial asks the user to name.
// It is immutable for the duration of a trial; binding a new stimulus to the
// cue engine resets all per-trial state.
type Stimulus struct {
	// ID uniquely identifies the stimulus within the catalogue.
	ID string

	// Name is the canonical target word (e.g., "broom").
	Name string

	// Alternatives lists acceptable alternative names (e.g., "sweeper").
	// Every matching stage is run against the canonical name and each
	// alternative.
	Alternatives []string

	// FirstLetter is the letter revealed by the level-1 cue. When empty,
	// the first rune of Name is used.
	FirstLetter string

	// Category is the semantic category revealed by the level-2 cue
	// (e.g., "a cleaning tool").
	Category string

	// Action is the action phrase revealed by the level-3 cue
	// (e.g., "you sweep the floor with it").
	Action string

	// Association is a related concept revealed by the level-4 cue
	// (e.g., "dustpan").
	Association string

	// Features describes physical features, revealed by the level-5 cue
	// (e.g., "a long wooden handle with bristles").
	Features string

	// Location is where the object is typically found, revealed by the
	// level-6 cue (e.g., "in a closet").
	Location string
}

// Letter returns the first-letter hint for the stimulus, falling back to the
// first rune of Name when FirstLetter is unset.
func (s *Stimulus) Letter() string {
	if s.FirstLetter != "" {
		return s.FirstLetter
	}
	for _, r := range s.Name {
		return string(r)
	}
	return ""
}

// Names returns the canonical name followed by all alternatives, skipping
// empty entries.
func (s *Stimulus) Names() []string {
	names := make([]string, 0, 1+len(s.Alternatives))
	if s.Name != "" {
		names = append(names, s.Name)
	}
	for _, alt := range s.Alternatives {
		if alt != "" {
			names = append(names, alt)
		}
	}
	return names
}

// MatchResult is the verdict for one evaluated utterance. A fresh value is
// produced per evaluation and never mutated.
type MatchResult struct {
	// IsCorrect reports whether the utterance counts as a correct naming
	// of the target under the active leniency rules.
	IsCorrect bool

	// Confidence is the match confidence in [0, 1]. It is 1.0 for matches
	// and the best computed similarity score otherwise (0 for structured
	// non-text fields).
	Confidence float64
}

// VoiceGender selects the narration voice for text-to-speech output.
type VoiceGender string

const (
	VoiceMale    VoiceGender = "male"
	VoiceFemale  VoiceGender = "female"
	VoiceNeutral VoiceGender = "neutral"
)

// IsValid reports whether g is a recognised voice gender.
func (g VoiceGender) IsValid() bool {
	switch g {
	case VoiceMale, VoiceFemale, VoiceNeutral:
		return true
	}
	return false
}

// MatchSettings is the per-user leniency configuration for the personalized
// answer matcher plus the narration voice preference. It is owned and
// persisted by the caller; the matchers treat it as a read-only input and
// never retain it between calls.
type MatchSettings struct {
	// AcceptableAlternatives enables matching against caller-supplied
	// nickname lists.
	AcceptableAlternatives bool `json:"acceptable_alternatives" yaml:"acceptable_alternatives"`

	// PartialMatching enables substring containment in either direction.
	PartialMatching bool `json:"partial_matching" yaml:"partial_matching"`

	// WordOverlap enables the word-overlap-ratio stage (accept at >= 0.5).
	WordOverlap bool `json:"word_overlap" yaml:"word_overlap"`

	// StopWordFiltering strips common function words before the exact
	// comparison.
	StopWordFiltering bool `json:"stop_word_filtering" yaml:"stop_word_filtering"`

	// SynonymMatching enables the static synonym-table stage.
	SynonymMatching bool `json:"synonym_matching" yaml:"synonym_matching"`

	// FirstNameOnly compares only the first token of each side.
	FirstNameOnly bool `json:"first_name_only" yaml:"first_name_only"`

	// VoicePreference selects the TTS narration voice.
	VoicePreference VoiceGender `json:"voice_preference" yaml:"voice_preference"`
}

// DefaultMatchSettings returns the default settings: every leniency flag
// enabled and a neutral voice.
func DefaultMatchSettings() MatchSettings {
	return MatchSettings{
		AcceptableAlternatives: true,
		PartialMatching:        true,
		WordOverlap:            true,
		StopWordFiltering:      true,
		SynonymMatching:        true,
		FirstNameOnly:          true,
		VoicePreference:        VoiceNeutral,
	}
}
