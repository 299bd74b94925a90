// Package elevenlabs provides an ElevenLabs-backed [tts.Speaker] for
// deployments where narration is synthesised server-side instead of by a
// browser companion. Synthesised PCM audio is handed to a caller-supplied
// [AudioSink] that performs the actual playback.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/kverrall/namecue/pkg/provider/tts"
	"github.com/kverrall/namecue/pkg/types"
)

const (
	synthesizeEndpointFmt = "https://api.elevenlabs.io/v1/text-to-speech/%s?output_format=%s"
	defaultModel          = "eleven_flash_v2_5"
	defaultOutputFmt      = "pcm_16000"
)

// AudioSink plays raw PCM audio. Play must block until playback finishes or
// ctx is cancelled.
type AudioSink interface {
	Play(ctx context.Context, pcm io.Reader) error
}

// Option is a functional option for configuring the ElevenLabs Speaker.
type Option func(*Speaker)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Speaker) {
		s.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000").
func WithOutputFormat(format string) Option {
	return func(s *Speaker) {
		s.outputFormat = format
	}
}

// WithVoice maps a voice gender to an ElevenLabs voice ID. Unmapped genders
// fall back to the neutral mapping, then to defaultVoice.
func WithVoice(gender types.VoiceGender, voiceID string) Option {
	return func(s *Speaker) {
		s.voices[gender] = voiceID
	}
}

// WithDefaultVoice sets the voice ID used when no gender mapping applies.
func WithDefaultVoice(voiceID string) Option {
	return func(s *Speaker) {
		s.defaultVoice = voiceID
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Speaker) {
		s.httpClient = c
	}
}

// Speaker implements [tts.Speaker] backed by the ElevenLabs synthesis API.
type Speaker struct {
	apiKey       string
	model        string
	outputFormat string
	defaultVoice string
	voices       map[types.VoiceGender]string
	httpClient   *http.Client
	sink         AudioSink

	mu      sync.Mutex
	current context.CancelFunc
}

var _ tts.Speaker = (*Speaker)(nil)

// New creates a new ElevenLabs Speaker. apiKey must be non-empty and sink
// must not be nil.
func New(apiKey string, sink AudioSink, opts ...Option) (*Speaker, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if sink == nil {
		return nil, errors.New("elevenlabs: sink must not be nil")
	}
	s := &Speaker{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		voices:       make(map[types.VoiceGender]string),
		httpClient:   &http.Client{},
		sink:         sink,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// synthesizeRequest is the JSON payload for the synthesis endpoint.
type synthesizeRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Speak synthesises text and plays it through the sink, returning when
// playback ends. A Stop call or context cancellation yields
// [tts.ErrStopped].
func (s *Speaker) Speak(ctx context.Context, text string, opts tts.Options) error {
	speakCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.current != nil {
		// Tear down any prior playback first: the playing handle is a
		// singleton resource.
		s.current()
	}
	s.current = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.current != nil {
			s.current()
			s.current = nil
		}
		s.mu.Unlock()
	}()

	pcm, err := s.synthesize(speakCtx, text, opts)
	if err != nil {
		if speakCtx.Err() != nil {
			return tts.ErrStopped
		}
		return err
	}

	if err := s.sink.Play(speakCtx, bytes.NewReader(pcm)); err != nil {
		if speakCtx.Err() != nil {
			return tts.ErrStopped
		}
		return fmt.Errorf("elevenlabs: playback: %w", err)
	}
	return nil
}

// Stop cancels any in-flight synthesis or playback. Safe to call when idle.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cancel := s.current
	s.current = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// synthesize performs the HTTP synthesis request and returns raw PCM bytes.
func (s *Speaker) synthesize(ctx context.Context, text string, opts tts.Options) ([]byte, error) {
	reqBody, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: s.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf(synthesizeEndpointFmt, s.voiceFor(opts.Gender), s.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs: synthesize: status %d: %s", resp.StatusCode, body)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return pcm, nil
}

// voiceFor resolves the voice ID for a gender preference.
func (s *Speaker) voiceFor(g types.VoiceGender) string {
	if id, ok := s.voices[g]; ok && id != "" {
		return id
	}
	if id, ok := s.voices[types.VoiceNeutral]; ok && id != "" {
		return id
	}
	return s.defaultVoice
}
