// Package gateway is the caller-facing session surface. A browser companion
// connects over one WebSocket; it renders the picture prompts, plays cue
// narration through the browser's speech synthesis, and streams recognition
// transcripts back. The gateway adapts that socket into a remote
// [tts.Speaker] and [stt.Listener] for the trial runner, and mirrors trial
// progress back to the companion as events.
//
// Every frame is a JSON text message with a type tag and a type-specific
// payload:
//
//	{"type": "speak", "payload": {"id": "op-3", "text": "It is a household tool."}}
package gateway

import (
	"encoding/json"
	"fmt"
)

// Frame types sent by the gateway.
const (
	TypeSpeak       = "speak"
	TypeSpeakStop   = "speak_stop"
	TypeListenStart = "listen_start"
	TypeListenAbort = "listen_abort"
	TypeTrial       = "trial"
	TypeCue         = "cue"
	TypeAnswer      = "answer"
	TypeFinalAnswer = "final_answer"
	TypeSummary     = "summary"
	TypeError       = "error"
)

// Frame types sent by the companion.
const (
	TypeStart       = "start"
	TypeContinue    = "continue"
	TypeStop        = "stop"
	TypeSpeakDone   = "speak_done"
	TypeSpeakError  = "speak_error"
	TypeTranscript  = "transcript"
	TypeListenError = "listen_error"
)

// Envelope is the wire framing for every message in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ── Gateway → companion payloads ──────────────────────────────────────────────

// SpeakRequest asks the companion to narrate text and reply with
// [SpeakDone] or [SpeakError] carrying the same op id.
type SpeakRequest struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Gender string  `json:"gender,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// ListenStart asks the companion to begin speech recognition. Transcripts
// and recognition errors carry the same op id until [ListenAbort].
type ListenStart struct {
	ID string `json:"id"`
}

// ListenAbort tears down the companion's recognition session. Transcripts
// for the aborted id are discarded.
type ListenAbort struct {
	ID string `json:"id"`
}

// TrialStart announces the stimulus the run has advanced to. The name is
// deliberately absent: the companion shows the picture, not the answer.
type TrialStart struct {
	StimulusID string `json:"stimulus_id"`
	Index      int    `json:"index"`
	Total      int    `json:"total"`
}

// CueEvent mirrors a cue narration so the companion can display it.
type CueEvent struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// AnswerEvent reports the verdict for one evaluated utterance.
type AnswerEvent struct {
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
}

// FinalAnswerEvent reports that the answer was revealed.
type FinalAnswerEvent struct {
	Name string `json:"name"`
}

// TrialOutcome is the per-stimulus entry of [SummaryEvent].
type TrialOutcome struct {
	StimulusID string `json:"stimulus_id"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Correct    bool   `json:"correct"`
	Revealed   bool   `json:"revealed"`
	Answer     string `json:"answer,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// SummaryEvent closes a run with all outcomes in run order.
type SummaryEvent struct {
	Outcomes []TrialOutcome `json:"outcomes"`
}

// ErrorEvent surfaces a gateway-side problem to the companion. Soft errors
// (provider warnings) leave the session running; fatal ones precede a close.
type ErrorEvent struct {
	Message string `json:"message"`
}

// ── Companion → gateway payloads ──────────────────────────────────────────────

// StartRequest begins a practice run. Either an explicit stimulus list or a
// category filter selects the stimuli; ids win when both are present.
type StartRequest struct {
	UserID      string   `json:"user_id"`
	Category    string   `json:"category,omitempty"`
	StimulusIDs []string `json:"stimulus_ids,omitempty"`
}

// SpeakDone acknowledges that narration for the given op finished playing.
type SpeakDone struct {
	ID string `json:"id"`
}

// SpeakError reports that narration for the given op failed.
type SpeakError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Transcript carries one recognition result for a listening op.
type Transcript struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence"`
}

// ListenError reports a recognition failure for a listening op. Kind uses
// the [stt.ErrorKind] values.
type ListenError struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Encode marshals a typed payload into a wire frame.
func Encode(typ string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshal %s payload: %w", typ, err)
		}
		raw = data
	}
	data, err := json.Marshal(Envelope{Type: typ, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal %s envelope: %w", typ, err)
	}
	return data, nil
}

// Decode unmarshals a wire frame into its envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("gateway: unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("gateway: frame without type")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into v.
func DecodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("gateway: %s frame without payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("gateway: unmarshal %s payload: %w", env.Type, err)
	}
	return nil
}
