package cue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kverrall/namecue/pkg/provider/stt"
	"github.com/kverrall/namecue/pkg/provider/tts"
	"github.com/kverrall/namecue/pkg/types"
)

const (
	// DefaultNarrationFallback is how long the machine waits after a
	// failed narration before arming listening anyway, so a TTS outage
	// never stalls the trial.
	DefaultNarrationFallback = 3 * time.Second

	// DefaultNoResponseTimeout is the single source of the final-cue
	// no-response timeout: when the MaxLevel cue has been narrated and no
	// answer is evaluated in time, the trial ends with the answer
	// revealed.
	DefaultNoResponseTimeout = 30 * time.Second
)

// minAnswerRunes is the minimum transcript length considered an answer
// attempt; anything shorter is treated as noise and listening continues.
const minAnswerRunes = 2

// Config holds tuning knobs for a [Machine]. The zero value is usable;
// unset durations fall back to the package defaults.
type Config struct {
	// NarrationFallback is the wait after a TTS failure before listening
	// is armed regardless. Default: [DefaultNarrationFallback].
	NarrationFallback time.Duration

	// NoResponseTimeout is the final-cue no-answer timeout. Default:
	// [DefaultNoResponseTimeout].
	NoResponseTimeout time.Duration

	// Voice carries the narration voice options, sourced from the user's
	// persisted preferences.
	Voice tts.Options
}

// Hooks are the caller-side notifications of trial progress. Nil hooks are
// skipped. Hooks are invoked from the machine's internal goroutines and must
// not block for long.
type Hooks struct {
	// OnCue fires when a cue has been selected for narration.
	OnCue func(level Level, text string)

	// OnAnswer fires for every evaluated utterance, correct or not, so
	// the caller can track how many cues a trial needed.
	OnAnswer func(answer string, correct bool)

	// OnFinalAnswer fires exactly once when the trial ends with the
	// answer revealed.
	OnFinalAnswer func()

	// OnWarning fires for unexpected recognition-engine errors. The
	// trial continues; the caller may surface a non-blocking notice.
	OnWarning func(err error)
}

// Machine drives the cue escalation protocol for one trial at a time.
//
// All exported methods are safe for concurrent use. Internally every
// asynchronous chain (narration, listening, timers) carries the generation
// number captured when the chain started; before acting on any awaited
// result the chain re-checks that its generation is still current, which
// makes cancellation cooperative — superseded work completes but has no
// observable effect. The trial-advance path is additionally guarded by a
// latch so it fires exactly once even when a timeout and a late answer race.
type Machine struct {
	speaker  tts.Speaker
	listener stt.Listener
	eval     Evaluator
	hooks    Hooks
	cfg      Config

	mu         sync.Mutex
	baseCtx    context.Context
	gen        uint64
	genCancel  context.CancelFunc
	stim       *types.Stimulus
	level      Level
	concluded  bool
	revealed   bool
	session    stt.Session
	noRespTime *time.Timer
}

// NewMachine creates a cue machine. speaker, listener, and eval must be
// non-nil; pass [LexicalEvaluator] for standard naming trials.
func NewMachine(speaker tts.Speaker, listener stt.Listener, eval Evaluator, hooks Hooks, cfg Config) *Machine {
	if cfg.NarrationFallback <= 0 {
		cfg.NarrationFallback = DefaultNarrationFallback
	}
	if cfg.NoResponseTimeout <= 0 {
		cfg.NoResponseTimeout = DefaultNoResponseTimeout
	}
	return &Machine{
		speaker:  speaker,
		listener: listener,
		eval:     eval,
		hooks:    hooks,
		cfg:      cfg,
		baseCtx:  context.Background(),
	}
}

// Bind starts a new trial for stim. Any in-flight narration, listening, or
// timer belonging to a previous trial is invalidated: listening is actively
// aborted so microphone input cannot leak into the new trial, and pending
// asynchronous completions become no-ops. The cue level resets to
// [MinLevel] and its cue is narrated immediately.
func (m *Machine) Bind(ctx context.Context, stim *types.Stimulus) {
	m.mu.Lock()
	m.cancelLocked()
	m.baseCtx = ctx
	m.stim = stim
	m.level = MinLevel
	m.concluded = false
	m.revealed = false
	gen, genCtx := m.nextGenerationLocked()
	m.mu.Unlock()

	go m.runCue(genCtx, gen, MinLevel)
}

// Abort cancels the current trial without concluding it. Safe to call when
// no trial is bound.
func (m *Machine) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
	m.concluded = true
}

// Level returns the current cue level.
func (m *Machine) Level() Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Revealed reports whether the current trial ended in the answer-revealed
// state.
func (m *Machine) Revealed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revealed
}

// Concluded reports whether the current trial has ended (correct answer or
// reveal).
func (m *Machine) Concluded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.concluded
}

// Continue acknowledges a concluded trial and returns the machine to idle so
// the next stimulus can be bound. It reports whether there was a concluded
// trial to acknowledge; while a trial is still running it does nothing.
func (m *Machine) Continue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stim == nil || !m.concluded {
		return false
	}
	m.cancelLocked()
	m.stim = nil
	return true
}

// Submit evaluates a final transcript against the active stimulus. It is
// the entry point for externally-delivered transcripts (the session
// websocket); transcripts from a provider-backed listener session arrive
// through the same path internally.
//
// Transcripts shorter than two characters are noise: they are ignored and
// listening continues rather than submitting.
func (m *Machine) Submit(text string) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.evaluate(gen, text)
}

// nextGenerationLocked invalidates the current generation and opens a new
// cancellation scope for the next one. Callers must hold m.mu.
func (m *Machine) nextGenerationLocked() (uint64, context.Context) {
	m.gen++
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.genCancel = cancel
	return m.gen, ctx
}

// cancelLocked tears down everything owned by the current generation: the
// cancellation scope, the live listening session, the no-response timer, and
// any in-flight narration. Callers must hold m.mu.
func (m *Machine) cancelLocked() {
	if m.genCancel != nil {
		m.genCancel()
		m.genCancel = nil
	}
	if m.session != nil {
		m.session.Abort()
		m.session = nil
	}
	if m.noRespTime != nil {
		m.noRespTime.Stop()
		m.noRespTime = nil
	}
	m.speaker.Stop()
}

// current reports whether gen is still the live generation and the trial is
// still running.
func (m *Machine) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && !m.concluded
}

// runCue narrates the cue for level and then arms listening. On narration
// failure it waits the configured fallback and arms listening anyway — TTS
// trouble must never stall the trial. The MaxLevel cue additionally arms the
// no-response timer.
func (m *Machine) runCue(ctx context.Context, gen uint64, level Level) {
	m.mu.Lock()
	stim := m.stim
	m.mu.Unlock()
	if stim == nil {
		return
	}

	text := Text(level, stim)
	if h := m.hooks.OnCue; h != nil {
		h(level, text)
	}

	err := m.speaker.Speak(ctx, text, m.cfg.Voice)
	if err != nil && !errors.Is(err, tts.ErrStopped) && ctx.Err() == nil {
		slog.Warn("cue narration failed; arming listening after fallback",
			"level", int(level), "error", err)
		select {
		case <-time.After(m.cfg.NarrationFallback):
		case <-ctx.Done():
			return
		}
	}
	if ctx.Err() != nil || !m.current(gen) {
		return
	}

	m.startListening(ctx, gen)

	if level == MaxLevel {
		m.armNoResponse(gen)
	}
}

// startListening opens a recognition session for the generation, tearing
// down any prior session first (the listening handle is a singleton
// resource), and consumes its results.
func (m *Machine) startListening(ctx context.Context, gen uint64) {
	sess, err := m.listener.Listen(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("could not start listening", "error", err)
			m.warn(err)
		}
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.concluded {
		m.mu.Unlock()
		sess.Abort()
		return
	}
	if m.session != nil {
		m.session.Abort()
	}
	m.session = sess
	m.mu.Unlock()

	go m.consume(ctx, gen, sess)
}

// consume pumps one listening session's results and errors until the
// session ends or the generation is superseded.
func (m *Machine) consume(ctx context.Context, gen uint64, sess stt.Session) {
	results := sess.Results()
	errs := sess.Errors()

	for results != nil || errs != nil {
		select {
		case r, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if !r.IsFinal {
				continue
			}
			m.evaluate(gen, r.Text)

		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			switch e.Kind {
			case stt.KindNoSpeech:
				// Expected non-event: restart listening silently.
				if m.current(gen) {
					sess.Abort()
					m.startListening(ctx, gen)
					return
				}
			case stt.KindAborted:
				// Deliberate teardown; nothing to do.
			default:
				slog.Warn("recognition engine error", "kind", string(e.Kind), "error", e.Err)
				m.warn(e)
			}

		case <-ctx.Done():
			return
		}
	}
}

// evaluate runs the evaluator on a final transcript and either concludes
// the trial or escalates to the next cue. Stale generations and noise
// transcripts have no effect.
func (m *Machine) evaluate(gen uint64, text string) {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < minAnswerRunes {
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.concluded || m.stim == nil {
		m.mu.Unlock()
		return
	}
	stim := m.stim
	m.mu.Unlock()

	answer, result := m.eval.Evaluate(trimmed, stim)
	if h := m.hooks.OnAnswer; h != nil {
		h(answer, result.IsCorrect)
	}

	if result.IsCorrect {
		m.conclude(gen)
		return
	}
	m.escalate(gen)
}

// conclude ends the trial on a correct answer. The latch guarantees a
// single conclusion per trial.
func (m *Machine) conclude(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.concluded {
		return
	}
	m.concluded = true
	m.cancelLocked()
}

// escalate advances to the next cue level, or reveals the answer when the
// final cue has already been answered incorrectly.
func (m *Machine) escalate(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.concluded {
		m.mu.Unlock()
		return
	}
	if m.level >= MaxLevel {
		m.mu.Unlock()
		m.reveal(gen)
		return
	}
	m.level++
	level := m.level
	m.cancelLocked()
	nextGen, ctx := m.nextGenerationLocked()
	m.mu.Unlock()

	go m.runCue(ctx, nextGen, level)
}

// armNoResponse starts the final-cue timer. When it fires and the
// generation is still live, the answer is revealed.
func (m *Machine) armNoResponse(gen uint64) {
	t := time.AfterFunc(m.cfg.NoResponseTimeout, func() {
		m.reveal(gen)
	})

	m.mu.Lock()
	if gen != m.gen || m.concluded {
		m.mu.Unlock()
		t.Stop()
		return
	}
	if m.noRespTime != nil {
		m.noRespTime.Stop()
	}
	m.noRespTime = t
	m.mu.Unlock()
}

// reveal transitions to the answer-revealed terminal state. The first
// trigger wins: concurrent triggers (the timeout firing just as a seventh
// incorrect answer arrives) are silenced by the latch, so the reveal is
// narrated and OnFinalAnswer invoked exactly once.
func (m *Machine) reveal(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.concluded {
		m.mu.Unlock()
		return
	}
	m.concluded = true
	m.revealed = true
	stim := m.stim
	base := m.baseCtx
	m.cancelLocked()
	m.mu.Unlock()

	if stim != nil {
		if err := m.speaker.Speak(base, RevealText(stim), m.cfg.Voice); err != nil && !errors.Is(err, tts.ErrStopped) {
			slog.Warn("final answer narration failed", "error", err)
		}
	}
	if h := m.hooks.OnFinalAnswer; h != nil {
		h()
	}
}

// warn invokes the OnWarning hook when set.
func (m *Machine) warn(err error) {
	if h := m.hooks.OnWarning; h != nil {
		h(err)
	}
}
