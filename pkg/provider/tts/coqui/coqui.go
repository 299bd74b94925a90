// Package coqui provides a [tts.Speaker] backed by a self-hosted Coqui TTS
// server (ghcr.io/coqui-ai/tts-cpu) for deployments that synthesise narration
// locally instead of through a hosted API. Synthesis is one GET /api/tts call
// per utterance; the WAV response is stripped to raw PCM, resampled to the
// configured output rate, and handed to a caller-supplied [AudioSink].
package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kverrall/namecue/pkg/provider/tts"
	"github.com/kverrall/namecue/pkg/types"
)

const (
	synthesizeEndpoint = "/api/tts"

	defaultTimeout = 30 * time.Second

	// defaultOutputRate matches the PCM rate the session transport expects.
	defaultOutputRate = 16000
)

// AudioSink plays raw PCM audio. Play must block until playback finishes or
// ctx is cancelled.
type AudioSink interface {
	Play(ctx context.Context, pcm io.Reader) error
}

// Option is a functional option for configuring the Coqui Speaker.
type Option func(*Speaker)

// WithLanguage sets the language_id query parameter sent to the server
// (e.g., "en"). Multi-lingual models require it; single-language models
// ignore it.
func WithLanguage(lang string) Option {
	return func(s *Speaker) {
		s.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *Speaker) {
		s.httpClient.Timeout = d
	}
}

// WithSpeakerID maps a voice gender to a Coqui speaker ID on multi-speaker
// models. Unmapped genders fall back to the neutral mapping, then to the
// model's default speaker.
func WithSpeakerID(gender types.VoiceGender, speakerID string) Option {
	return func(s *Speaker) {
		s.speakers[gender] = speakerID
	}
}

// WithOutputSampleRate sets the PCM sample rate delivered to the sink.
// Responses at a different rate are resampled. Zero disables resampling.
func WithOutputSampleRate(rate int) Option {
	return func(s *Speaker) {
		s.outputRate = rate
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Speaker) {
		s.httpClient = c
	}
}

// Speaker implements [tts.Speaker] against a Coqui TTS server's REST API.
type Speaker struct {
	serverURL  string
	language   string
	outputRate int
	speakers   map[types.VoiceGender]string
	httpClient *http.Client
	sink       AudioSink

	mu      sync.Mutex
	current context.CancelFunc
}

var _ tts.Speaker = (*Speaker)(nil)

// New creates a new Coqui Speaker talking to the server at serverURL
// (e.g., "http://localhost:5002"). sink must not be nil.
func New(serverURL string, sink AudioSink, opts ...Option) (*Speaker, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	if sink == nil {
		return nil, errors.New("coqui: sink must not be nil")
	}
	s := &Speaker{
		serverURL:  strings.TrimRight(serverURL, "/"),
		outputRate: defaultOutputRate,
		speakers:   make(map[types.VoiceGender]string),
		httpClient: &http.Client{Timeout: defaultTimeout},
		sink:       sink,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
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
		return fmt.Errorf("coqui: playback: %w", err)
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

// synthesize performs one GET /api/tts request and returns raw PCM, header
// stripped and resampled to the configured output rate.
func (s *Speaker) synthesize(ctx context.Context, text string, opts tts.Options) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if id := s.speakerFor(opts.Gender); id != "" {
		params.Set("speaker_id", id)
	}
	if s.language != "" {
		params.Set("language_id", s.language)
	}

	reqURL := s.serverURL + synthesizeEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("coqui: synthesize: status %d: %s", resp.StatusCode, body)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio: %w", err)
	}

	info, err := parseWAV(wav)
	if err != nil {
		return nil, err
	}
	pcm := wav[info.DataOffset:]
	if s.outputRate > 0 && info.SampleRate != s.outputRate && info.Channels == 1 {
		pcm = resampleMono16(pcm, info.SampleRate, s.outputRate)
	}
	return pcm, nil
}

// speakerFor resolves the Coqui speaker ID for a gender preference. An empty
// result lets the server use the model's default speaker.
func (s *Speaker) speakerFor(g types.VoiceGender) string {
	if id, ok := s.speakers[g]; ok && id != "" {
		return id
	}
	return s.speakers[types.VoiceNeutral]
}

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset int // byte offset of the first PCM sample
	SampleRate int // samples per second
	Channels   int // 1 = mono, 2 = stereo
}

// parseWAV walks the RIFF chunks in wav and returns the data offset and
// audio format from the "fmt " sub-chunk. Walking the chunks is more robust
// than assuming a fixed 44-byte header because the fmt chunk size varies.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("coqui: response is not a RIFF/WAVE container")
	}

	var info wavInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return wavInfo{}, errors.New("coqui: WAV data chunk precedes fmt chunk")
			}
			info.DataOffset = offset + 8
			return info, nil
		}

		// Chunks are word-aligned: odd sizes carry one pad byte.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("coqui: WAV response missing data chunk")
}

// resampleMono16 resamples 16-bit little-endian mono PCM from srcRate to
// dstRate using linear interpolation.
func resampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		}

		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
