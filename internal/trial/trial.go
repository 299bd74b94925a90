// Package trial sequences an ordered list of stimuli through the cue
// machine. It advances automatically on a correct answer, waits for an
// explicit continue after a revealed answer, and reports one [Outcome] per
// stimulus to the caller. Match-history persistence stays with the caller;
// the runner only hands outcomes out.
package trial

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kverrall/namecue/internal/cue"
	"github.com/kverrall/namecue/internal/observe"
	"github.com/kverrall/namecue/pkg/provider/stt"
	"github.com/kverrall/namecue/pkg/provider/tts"
	"github.com/kverrall/namecue/pkg/types"
)

// ErrAlreadyStarted is returned by [Runner.Start] when the runner has
// already been started.
var ErrAlreadyStarted = errors.New("trial: runner already started")

// ErrNoStimuli is returned by [Runner.Start] when the stimulus list is
// empty.
var ErrNoStimuli = errors.New("trial: no stimuli to run")

// Outcome is the summary of one completed naming trial.
type Outcome struct {
	StimulusID string
	Name       string

	// Level is the cue level the trial ended on.
	Level cue.Level

	// Correct is true when the trial ended on a correct answer; Revealed
	// is true when the answer had to be given away. Exactly one of the
	// two is set.
	Correct  bool
	Revealed bool

	// Answer is the last extracted answer candidate, empty when the trial
	// timed out without any usable utterance.
	Answer string

	Duration time.Duration
}

// Events carries the runner's callbacks. All fields are optional. Callbacks
// fire from the machine's goroutines and must not block.
type Events struct {
	// OnTrialStart fires when a stimulus is bound, with its position in
	// the run.
	OnTrialStart func(stim types.Stimulus, index, total int)

	// OnCue fires whenever a cue is about to be narrated.
	OnCue func(level cue.Level, text string)

	// OnAnswer fires for every evaluated utterance.
	OnAnswer func(answer string, correct bool)

	// OnOutcome fires once per stimulus with the trial summary.
	OnOutcome func(o Outcome)

	// OnComplete fires after the last stimulus, with all outcomes in run
	// order.
	OnComplete func(outcomes []Outcome)

	// OnWarning surfaces recoverable provider trouble.
	OnWarning func(err error)
}

// Runner drives one practice run: a fixed stimulus order, one cue-machine
// trial per stimulus.
type Runner struct {
	machine *cue.Machine
	metrics *observe.Metrics
	events  Events

	mu       sync.Mutex
	ctx      context.Context
	stimuli  []types.Stimulus
	idx      int
	level    cue.Level
	answer   string
	started  time.Time
	running  bool
	awaiting bool
	outcomes []Outcome
}

// NewRunner builds a runner with its own cue machine on top of the given
// providers and evaluator.
func NewRunner(speaker tts.Speaker, listener stt.Listener, eval cue.Evaluator, cfg cue.Config, events Events) *Runner {
	r := &Runner{
		metrics: observe.DefaultMetrics(),
		events:  events,
	}
	hooks := cue.Hooks{
		OnCue:         r.onCue,
		OnAnswer:      r.onAnswer,
		OnFinalAnswer: r.onFinalAnswer,
		OnWarning:     r.onWarning,
	}
	r.machine = cue.NewMachine(speaker, listener, eval, hooks, cfg)
	return r
}

// Start begins the run with the first stimulus. The context bounds every
// trial in the run.
func (r *Runner) Start(ctx context.Context, stimuli []types.Stimulus) error {
	if len(stimuli) == 0 {
		return ErrNoStimuli
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.running = true
	r.ctx = ctx
	r.stimuli = stimuli
	r.idx = 0
	r.mu.Unlock()

	r.metrics.ActiveTrials.Add(ctx, 1)
	r.bindCurrent()
	return nil
}

// Continue acknowledges a revealed answer and advances to the next
// stimulus. It reports whether an acknowledgement was pending.
func (r *Runner) Continue() bool {
	r.mu.Lock()
	if !r.awaiting {
		r.mu.Unlock()
		return false
	}
	r.awaiting = false
	r.mu.Unlock()

	r.machine.Continue()
	r.advance()
	return true
}

// Stop aborts the run. The current trial ends without an outcome.
func (r *Runner) Stop() {
	r.machine.Abort()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.running = false
		r.metrics.ActiveTrials.Add(context.Background(), -1)
	}
}

// Running reports whether the run is still in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Outcomes returns the outcomes recorded so far, in run order.
func (r *Runner) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Submit forwards an externally-delivered final transcript to the current
// trial.
func (r *Runner) Submit(text string) {
	r.machine.Submit(text)
}

// bindCurrent starts the trial for the stimulus at the current index.
func (r *Runner) bindCurrent() {
	r.mu.Lock()
	stim := r.stimuli[r.idx]
	index, total := r.idx, len(r.stimuli)
	ctx := r.ctx
	r.level = cue.MinLevel
	r.answer = ""
	r.started = time.Now()
	r.mu.Unlock()

	if h := r.events.OnTrialStart; h != nil {
		h(stim, index, total)
	}
	r.machine.Bind(ctx, &stim)
}

// advance moves to the next stimulus or finishes the run.
func (r *Runner) advance() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.idx++
	if r.idx < len(r.stimuli) {
		r.mu.Unlock()
		r.bindCurrent()
		return
	}
	r.running = false
	ctx := r.ctx
	outcomes := make([]Outcome, len(r.outcomes))
	copy(outcomes, r.outcomes)
	r.mu.Unlock()

	r.metrics.ActiveTrials.Add(ctx, -1)
	if h := r.events.OnComplete; h != nil {
		h(outcomes)
	}
}

// record captures the outcome of the current trial.
func (r *Runner) record(correct bool) Outcome {
	r.mu.Lock()
	stim := r.stimuli[r.idx]
	o := Outcome{
		StimulusID: stim.ID,
		Name:       stim.Name,
		Level:      r.level,
		Correct:    correct,
		Revealed:   !correct,
		Answer:     r.answer,
		Duration:   time.Since(r.started),
	}
	r.outcomes = append(r.outcomes, o)
	ctx := r.ctx
	r.mu.Unlock()

	outcome := "revealed"
	if correct {
		outcome = "correct"
	}
	r.metrics.RecordTrialOutcome(ctx, outcome, int(o.Level))
	r.metrics.TrialDuration.Record(ctx, o.Duration.Seconds())
	if h := r.events.OnOutcome; h != nil {
		h(o)
	}
	return o
}

func (r *Runner) onCue(level cue.Level, text string) {
	r.mu.Lock()
	r.level = level
	ctx := r.ctx
	r.mu.Unlock()

	if level > cue.MinLevel {
		r.metrics.RecordEscalation(ctx, int(level))
	}
	if h := r.events.OnCue; h != nil {
		h(level, text)
	}
}

func (r *Runner) onAnswer(answer string, correct bool) {
	r.mu.Lock()
	r.answer = answer
	ctx := r.ctx
	r.mu.Unlock()

	r.metrics.RecordAnswer(ctx, correct)
	if h := r.events.OnAnswer; h != nil {
		h(answer, correct)
	}
	if correct {
		r.record(true)
		r.advance()
	}
}

func (r *Runner) onFinalAnswer() {
	r.record(false)
	r.mu.Lock()
	r.awaiting = true
	r.mu.Unlock()
}

func (r *Runner) onWarning(err error) {
	if h := r.events.OnWarning; h != nil {
		h(err)
	}
}
