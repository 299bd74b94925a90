package transcript_test

import (
	"testing"

	"github.com/kverrall/namecue/internal/transcript"
)

func TestExtractAnswer_CarrierPhrases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"That's a broom.", "broom"},
		{"this is the broom", "broom"},
		{"it is a vacuum cleaner", "vacuum cleaner"},
		{"I think it's a broom", "broom"},
		{"I think broom", "broom"},
		{"maybe a mop", "mop"},
		{"broom is good", "broom"},
		{"it's called a whisk", "whisk"},
	}

	for _, tt := range tests {
		if got := transcript.ExtractAnswer(tt.in); got != tt.want {
			t.Errorf("ExtractAnswer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractAnswer_FillerFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"um the broom", "broom"},
		{"uh, broom", "broom"},
		{"well... broom", "broom"},
		{"broom", "broom"},
		{"the old red broom handle", "red broom handle"}, // last three words
	}

	for _, tt := range tests {
		if got := transcript.ExtractAnswer(tt.in); got != tt.want {
			t.Errorf("ExtractAnswer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractAnswer_Degradation(t *testing.T) {
	t.Parallel()

	// Pure filler degrades to the trimmed raw transcript.
	if got := transcript.ExtractAnswer("  um uh  "); got != "um uh" {
		t.Errorf("ExtractAnswer(pure filler) = %q, want raw trimmed transcript", got)
	}
	if got := transcript.ExtractAnswer(""); got != "" {
		t.Errorf("ExtractAnswer(\"\") = %q, want \"\"", got)
	}
	if got := transcript.ExtractAnswer("   "); got != "" {
		t.Errorf("ExtractAnswer(blank) = %q, want \"\"", got)
	}
}
