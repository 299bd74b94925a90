package cue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kverrall/namecue/internal/match"
	"github.com/kverrall/namecue/pkg/provider/stt"
	sttmock "github.com/kverrall/namecue/pkg/provider/stt/mock"
	"github.com/kverrall/namecue/pkg/provider/tts"
	ttsmock "github.com/kverrall/namecue/pkg/provider/tts/mock"
	"github.com/kverrall/namecue/pkg/types"
)

// exactEvaluator accepts exactly one answer string. It keeps machine tests
// independent of the lexical matcher.
func exactEvaluator(accept string) Evaluator {
	return EvaluatorFunc(func(utterance string, stim *types.Stimulus) (string, types.MatchResult) {
		if match.Normalize(utterance) == accept {
			return utterance, types.MatchResult{IsCorrect: true, Confidence: 1.0}
		}
		return utterance, types.MatchResult{IsCorrect: false}
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type harness struct {
	speaker  *ttsmock.Speaker
	listener *sttmock.Listener
	machine  *Machine

	mu      sync.Mutex
	answers []bool
	finals  atomic.Int64
}

func newHarness(t *testing.T, cfg Config, eval Evaluator) *harness {
	t.Helper()
	h := &harness{
		speaker:  &ttsmock.Speaker{},
		listener: &sttmock.Listener{},
	}
	hooks := Hooks{
		OnAnswer: func(answer string, correct bool) {
			h.mu.Lock()
			h.answers = append(h.answers, correct)
			h.mu.Unlock()
		},
		OnFinalAnswer: func() { h.finals.Add(1) },
	}
	h.machine = NewMachine(h.speaker, h.listener, eval, hooks, cfg)
	t.Cleanup(h.machine.Abort)
	return h
}

// answer waits for a live listening session and emits one final transcript.
func (h *harness) answer(t *testing.T, text string) {
	t.Helper()
	prevLevel := h.machine.Level()
	sess := h.waitSession(t)
	sess.Emit(text, true, 0.9)
	waitFor(t, "answer to be processed", func() bool {
		return h.machine.Concluded() || h.machine.Level() != prevLevel || h.machine.Revealed()
	})
}

// waitSession waits for an open, not-yet-closed listening session.
func (h *harness) waitSession(t *testing.T) *sttmock.Session {
	t.Helper()
	var sess *sttmock.Session
	waitFor(t, "listening session", func() bool {
		last := h.listener.Last()
		if last == nil || last.Closed() {
			return false
		}
		sess = last
		return true
	})
	return sess
}

func TestMachineCorrectAnswerConcludes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))
	h.machine.Bind(context.Background(), testStimulus())

	h.answer(t, "broom")

	waitFor(t, "trial to conclude", h.machine.Concluded)
	if h.machine.Revealed() {
		t.Error("correct answer must not end in the revealed state")
	}
	if got := h.finals.Load(); got != 0 {
		t.Errorf("OnFinalAnswer fired %d times, want 0", got)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.answers) != 1 || !h.answers[0] {
		t.Errorf("answers = %v, want one correct verdict", h.answers)
	}
}

func TestMachineEscalatesThroughAllLevels(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))
	stim := testStimulus()
	h.machine.Bind(context.Background(), stim)

	for want := MinLevel + 1; want <= MaxLevel; want++ {
		h.answer(t, "mop")
		waitFor(t, "escalation", func() bool { return h.machine.Level() >= want })
		if got := h.machine.Level(); got != want {
			t.Fatalf("after %d wrong answers Level() = %d, want %d", int(want-MinLevel), got, want)
		}
	}

	// Every level's cue was narrated in order.
	waitFor(t, "all cues narrated", func() bool { return len(h.speaker.Texts()) >= int(MaxLevel) })
	texts := h.speaker.Texts()
	for l := MinLevel; l <= MaxLevel; l++ {
		if texts[l-1] != Text(l, stim) {
			t.Errorf("narration %d = %q, want %q", l-1, texts[l-1], Text(l, stim))
		}
	}
}

func TestMachineRevealsAfterFinalWrongAnswer(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))
	stim := testStimulus()
	h.machine.Bind(context.Background(), stim)

	for i := 0; i < int(MaxLevel); i++ {
		h.answer(t, "mop")
	}

	waitFor(t, "reveal", h.machine.Revealed)
	waitFor(t, "final answer hook", func() bool { return h.finals.Load() == 1 })

	waitFor(t, "reveal narration", func() bool {
		texts := h.speaker.Texts()
		return len(texts) > 0 && texts[len(texts)-1] == RevealText(stim)
	})

	// A late answer after the reveal has no effect.
	h.machine.Submit("broom")
	time.Sleep(20 * time.Millisecond)
	if got := h.finals.Load(); got != 1 {
		t.Errorf("OnFinalAnswer fired %d times, want exactly 1", got)
	}
	if !h.machine.Concluded() {
		t.Error("trial must stay concluded after the reveal")
	}
}

func TestMachineRevealsOnNoResponseTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{NoResponseTimeout: 30 * time.Millisecond}, exactEvaluator("broom"))
	h.machine.Bind(context.Background(), testStimulus())

	for i := 0; i < int(MaxLevel)-1; i++ {
		h.answer(t, "mop")
	}
	if got := h.machine.Level(); got != MaxLevel {
		t.Fatalf("Level() = %d, want %d before the timeout test", got, MaxLevel)
	}

	// No further answers: the timer fires and reveals the answer.
	waitFor(t, "timeout reveal", h.machine.Revealed)
	waitFor(t, "final answer hook", func() bool { return h.finals.Load() == 1 })
}

func TestMachineRevealExactlyOnceUnderRace(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{NoResponseTimeout: 5 * time.Millisecond}, exactEvaluator("broom"))
	h.machine.Bind(context.Background(), testStimulus())

	for i := 0; i < int(MaxLevel)-1; i++ {
		h.answer(t, "mop")
	}

	// Race the timeout against a burst of late wrong answers; the reveal
	// path must still run exactly once.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.machine.Submit("mop")
		}()
	}
	wg.Wait()

	waitFor(t, "reveal", h.machine.Revealed)
	time.Sleep(30 * time.Millisecond)
	if got := h.finals.Load(); got != 1 {
		t.Errorf("OnFinalAnswer fired %d times, want exactly 1", got)
	}
}

func TestMachineBindCancelsInFlightNarration(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))

	// The first narration blocks until its generation is cancelled;
	// later narrations complete immediately.
	var speaks atomic.Int64
	h.speaker.SpeakFn = func(ctx context.Context, text string, opts tts.Options) error {
		if speaks.Add(1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}

	first := testStimulus()
	second := &types.Stimulus{ID: "sofa", Name: "sofa", Category: "furniture"}

	h.machine.Bind(context.Background(), first)
	waitFor(t, "first narration", func() bool { return speaks.Load() == 1 })

	h.machine.Bind(context.Background(), second)
	waitFor(t, "second narration", func() bool { return speaks.Load() >= 2 })

	// The superseded chain must not arm listening; only the new trial's
	// session may exist.
	h.waitSession(t)
	time.Sleep(20 * time.Millisecond)
	if got := len(h.listener.Sessions()); got != 1 {
		t.Errorf("listening sessions = %d, want 1 (cancelled trial must not listen)", got)
	}
	if got := h.machine.Level(); got != MinLevel {
		t.Errorf("Level() = %d after rebind, want %d", got, MinLevel)
	}
}

func TestMachineBindAbortsPreviousSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))
	h.machine.Bind(context.Background(), testStimulus())
	first := h.waitSession(t)

	h.machine.Bind(context.Background(), testStimulus())

	waitFor(t, "previous session abort", first.Aborted)

	// Input captured for the old trial has no effect on the new one.
	first.Emit("mop", true, 0.9)
	second := h.waitSession(t)
	if second == first {
		t.Fatal("new trial reused the aborted session")
	}
	time.Sleep(20 * time.Millisecond)
	if got := h.machine.Level(); got != MinLevel {
		t.Errorf("stale input escalated the new trial: Level() = %d", got)
	}
}

func TestMachineNoSpeechRestartsListening(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))
	h.machine.Bind(context.Background(), testStimulus())

	first := h.waitSession(t)
	first.EmitError(stt.KindNoSpeech, errors.New("no speech detected"))

	waitFor(t, "fresh session", func() bool {
		last := h.listener.Last()
		return last != nil && last != first && !last.Closed()
	})
	if h.machine.Level() != MinLevel {
		t.Errorf("no-speech must not escalate; Level() = %d", h.machine.Level())
	}
}

func TestMachineIgnoresNoiseTranscripts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))
	h.machine.Bind(context.Background(), testStimulus())

	sess := h.waitSession(t)
	sess.Emit("a", true, 0.3)
	sess.Emit("  ", true, 0.3)
	time.Sleep(20 * time.Millisecond)

	if got := h.machine.Level(); got != MinLevel {
		t.Errorf("noise escalated the cue: Level() = %d, want %d", got, MinLevel)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.answers) != 0 {
		t.Errorf("noise produced %d verdicts, want 0", len(h.answers))
	}
}

func TestMachineInterimResultsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))
	h.machine.Bind(context.Background(), testStimulus())

	sess := h.waitSession(t)
	sess.Emit("broo", false, 0.4)
	sess.Emit("broom", false, 0.6)
	time.Sleep(20 * time.Millisecond)

	if h.machine.Concluded() {
		t.Fatal("interim results must not conclude the trial")
	}
	sess.Emit("broom", true, 0.9)
	waitFor(t, "final result processed", h.machine.Concluded)
}

func TestMachineNarrationFailureStillArmsListening(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{NarrationFallback: 5 * time.Millisecond}, exactEvaluator("broom"))
	h.speaker.SpeakErr = errors.New("synthesis unavailable")
	h.machine.Bind(context.Background(), testStimulus())

	// Listening comes up despite the TTS failure.
	h.waitSession(t)
}

func TestMachineContinueAfterConclusion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, exactEvaluator("broom"))
	h.machine.Bind(context.Background(), testStimulus())

	if h.machine.Continue() {
		t.Error("Continue during a running trial must report false")
	}

	h.answer(t, "broom")
	waitFor(t, "trial to conclude", h.machine.Concluded)

	if !h.machine.Continue() {
		t.Error("Continue after conclusion must report true")
	}
	if h.machine.Continue() {
		t.Error("second Continue must report false")
	}
}
