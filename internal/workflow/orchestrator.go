// Package workflow drives one upload-to-results session as an explicit state
// machine. Each Orchestrator owns its state; a stage runs at most one network
// operation and every failure lands in Failed, from which Retry replays the
// stage with the inputs it was started with.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/api"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/validate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInFlight is returned when a trigger arrives while a stage is running.
	ErrInFlight = errors.New("a workflow stage is already in progress")

	// ErrAbandoned is returned by every trigger once the orchestrator is abandoned.
	ErrAbandoned = errors.New("workflow abandoned")

	// ErrInvalidTransition is returned when a trigger does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid workflow transition")

	ErrScanPending  = errors.New("scan still in progress")
	ErrFileRejected = errors.New("file rejected by scan")
)

// Backend is the part of the API client the workflow calls.
type Backend interface {
	UploadScan(ctx context.Context, doc domain.Document) (string, error)
	ScanStatus(ctx context.Context, fileRef string) (api.ScanReport, error)
	Generate(ctx context.Context, p api.GenerateParams) (api.Generated, error)
	GetTest(ctx context.Context, testID string) (*domain.Test, error)
	Submit(ctx context.Context, testID string, answers domain.Answers) (domain.SubmissionResult, error)
}

// Authorizer is the access check applied before a file is selected.
type Authorizer interface {
	Authorize(required ...domain.Role) access.Decision
}

// run is one trigger's in-flight operation. A run that is no longer the
// orchestrator's current run must not apply anything.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	epoch  uint64
}

type Orchestrator struct {
	id      string
	backend Backend
	gate    Authorizer
	cfg     Config
	logger  zerolog.Logger

	mu        sync.Mutex
	state     State
	before    State // state preceding the current run's trigger
	running   *run
	epoch     uint64
	abandoned bool
	subs      map[int]func(Transition)
	nextSub   int
}

func New(backend Backend, gate Authorizer, cfg Config, logger zerolog.Logger) *Orchestrator {
	id := uuid.NewString()
	return &Orchestrator{
		id:      id,
		backend: backend,
		gate:    gate,
		cfg:     cfg,
		logger:  logger.With().Str("workflow_id", id).Logger(),
		state:   Idle{},
		subs:    map[int]func(Transition){},
	}
}

// ID returns the instance identifier used in logs and UI messages.
func (o *Orchestrator) ID() string { return o.id }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers fn for every transition. The returned function removes it.
func (o *Orchestrator) Subscribe(fn func(Transition)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// SelectFile validates doc locally, then uploads it and waits for the scan
// verdict. The caller must be a signed-in member.
func (o *Orchestrator) SelectFile(ctx context.Context, doc domain.Document) error {
	if d := o.gate.Authorize(access.Members...); d != access.Allowed {
		return fmt.Errorf("%w: uploading requires a signed-in member (%s)", access.ErrDenied, d)
	}
	if err := doc.Validate(o.cfg.MaxUploadBytes); err != nil {
		return gateway.Validation(err.Error(), map[string]string{"file": err.Error()})
	}

	r, err := o.begin(ctx, func(s State) (State, error) {
		if _, ok := s.(Idle); !ok {
			return nil, invalidTrigger("select a file", s)
		}
		return Uploading{Document: doc}, nil
	})
	if err != nil {
		return err
	}
	return o.upload(r, doc)
}

// RequestGeneration asks the backend for a test built from the scanned file.
func (o *Orchestrator) RequestGeneration(ctx context.Context, p GenerationParams) error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	r, err := o.begin(ctx, func(s State) (State, error) {
		ready, ok := s.(Ready)
		if !ok {
			return nil, invalidTrigger("generate a test", s)
		}
		if p.FileRef != ready.FileRef {
			msg := fmt.Sprintf("file %s was not uploaded in this workflow", p.FileRef)
			return nil, gateway.Validation(msg, map[string]string{"file_ref": msg})
		}
		return Generating{Params: p}, nil
	})
	if err != nil {
		return err
	}
	return o.generate(r, p)
}

// BeginTest starts taking test, which must be the test generated by this workflow.
func (o *Orchestrator) BeginTest(test *domain.Test) error {
	if test == nil {
		return gateway.Validation("no test to begin", nil)
	}
	if err := test.Validate(); err != nil {
		return gateway.Validation(err.Error(), nil)
	}
	return o.apply(func(s State) (State, error) {
		gen, ok := s.(GeneratedTest)
		if !ok {
			return nil, invalidTrigger("begin a test", s)
		}
		if test.ID != gen.TestID {
			msg := fmt.Sprintf("test %s is not the generated test %s", test.ID, gen.TestID)
			return nil, gateway.Validation(msg, map[string]string{"test_id": msg})
		}
		return Taking{Test: test, Answers: domain.Answers{}}, nil
	})
}

// LoadTest fetches the generated test and begins it.
func (o *Orchestrator) LoadTest(ctx context.Context) error {
	var loading LoadingTest
	r, err := o.begin(ctx, func(s State) (State, error) {
		gen, ok := s.(GeneratedTest)
		if !ok {
			return nil, invalidTrigger("load the test", s)
		}
		loading = LoadingTest{FileRef: gen.FileRef, TestID: gen.TestID, Metadata: gen.Metadata}
		return loading, nil
	})
	if err != nil {
		return err
	}
	return o.load(r, loading)
}

// RecordAnswer sets the answer for one question of the test being taken.
// Unknown questions and options are rejected without changing state.
func (o *Orchestrator) RecordAnswer(questionID, option string) error {
	return o.apply(func(s State) (State, error) {
		taking, ok := s.(Taking)
		if !ok {
			return nil, invalidTrigger("record an answer", s)
		}
		q, ok := taking.Test.Question(questionID)
		if !ok {
			msg := fmt.Sprintf("question %s is not part of test %s", questionID, taking.Test.ID)
			return nil, gateway.Validation(msg, map[string]string{"question_id": msg})
		}
		if !q.HasOption(option) {
			msg := fmt.Sprintf("%q is not an option of question %s", option, questionID)
			return nil, gateway.Validation(msg, map[string]string{"option": msg})
		}
		answers := taking.Answers.Clone()
		answers[questionID] = option
		return Taking{Test: taking.Test, Answers: answers}, nil
	})
}

// Answers returns a copy of the answers recorded so far, or nil when no test
// is being taken.
func (o *Orchestrator) Answers() domain.Answers {
	switch s := o.State().(type) {
	case Taking:
		return s.Answers.Clone()
	case Submitting:
		return s.Answers.Clone()
	case Failed:
		if s.Stage == StageSubmitting {
			return s.Inputs.Answers.Clone()
		}
	}
	return nil
}

// Submit sends the recorded answers for grading.
func (o *Orchestrator) Submit(ctx context.Context) error {
	var sub Submitting
	r, err := o.begin(ctx, func(s State) (State, error) {
		taking, ok := s.(Taking)
		if !ok {
			return nil, invalidTrigger("submit", s)
		}
		if len(taking.Answers) == 0 {
			return nil, gateway.Validation("answer at least one question before submitting", nil)
		}
		sub = Submitting{Test: taking.Test, Answers: taking.Answers.Clone()}
		return sub, nil
	})
	if err != nil {
		return err
	}
	return o.submit(r, sub.Test, sub.Answers)
}

// Retry re-enters the failed stage with the inputs it originally ran with.
func (o *Orchestrator) Retry(ctx context.Context) error {
	var failed Failed
	r, err := o.begin(ctx, func(s State) (State, error) {
		f, ok := s.(Failed)
		if !ok {
			return nil, invalidTrigger("retry", s)
		}
		failed = f
		return f.resume(), nil
	})
	if err != nil {
		return err
	}

	o.logger.Info().Str("stage", string(failed.Stage)).Str("previous_reason", failed.Reason).Msg("retrying stage")

	in := failed.Inputs
	switch failed.Stage {
	case StageUploading:
		return o.upload(r, in.Document)
	case StageScanning:
		return o.scan(r, in.FileRef)
	case StageGenerating:
		return o.generate(r, in.Params)
	case StageLoadingTest:
		return o.load(r, LoadingTest{FileRef: in.FileRef, TestID: in.TestID, Metadata: in.Metadata})
	default:
		return o.submit(r, in.Test, in.Answers)
	}
}

// Cancel aborts the running stage, if any. The state returns to what it was
// before the stage's trigger and the stage's response is never applied.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	r := o.running
	if r == nil {
		o.mu.Unlock()
		return
	}
	o.running = nil
	r.cancel()
	t := o.setLocked(o.before)
	o.mu.Unlock()

	o.logger.Debug().Str("state", t.To.Name()).Msg("stage cancelled")
	o.notify(t)
}

// Reset cancels any running stage and returns to Idle.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.abandoned {
		o.mu.Unlock()
		return
	}
	if o.running != nil {
		o.running.cancel()
		o.running = nil
	}
	t := o.setLocked(Idle{})
	o.mu.Unlock()
	o.notify(t)
}

// Abandon cancels any running stage and detaches the orchestrator for good.
// Subscribers receive a final transition to Idle.
func (o *Orchestrator) Abandon() {
	o.mu.Lock()
	if o.abandoned {
		o.mu.Unlock()
		return
	}
	o.abandoned = true
	if o.running != nil {
		o.running.cancel()
		o.running = nil
	}
	t := o.setLocked(Idle{})
	o.mu.Unlock()

	o.logger.Debug().Msg("workflow abandoned")
	o.notify(t)

	o.mu.Lock()
	o.subs = map[int]func(Transition){}
	o.mu.Unlock()
}

func (o *Orchestrator) upload(r *run, doc domain.Document) error {
	var fileRef string
	err := o.stage(r, StageUploading, func(ctx context.Context) (err error) {
		fileRef, err = o.backend.UploadScan(ctx, doc)
		return err
	})
	if err != nil {
		return o.fail(r, StageUploading, Inputs{Document: doc}, err)
	}
	if err := o.advance(r, StageUploading, Scanning{FileRef: fileRef}); err != nil {
		return err
	}
	return o.scan(r, fileRef)
}

func (o *Orchestrator) scan(r *run, fileRef string) error {
	var report api.ScanReport
	err := o.stage(r, StageScanning, func(ctx context.Context) (err error) {
		report, err = o.backend.ScanStatus(ctx, fileRef)
		return err
	})
	if err == nil {
		switch report.Status {
		case domain.ScanPending:
			err = ErrScanPending
		case domain.ScanRejected:
			err = ErrFileRejected
			if report.Detail != "" {
				err = fmt.Errorf("%w: %s", ErrFileRejected, report.Detail)
			}
		}
	}
	if err != nil {
		return o.fail(r, StageScanning, Inputs{FileRef: fileRef}, err)
	}
	return o.finish(r, StageScanning, Ready{FileRef: fileRef})
}

func (o *Orchestrator) generate(r *run, p GenerationParams) error {
	var gen api.Generated
	err := o.stage(r, StageGenerating, func(ctx context.Context) (err error) {
		gen, err = o.backend.Generate(ctx, api.GenerateParams{
			FileRef:      p.FileRef,
			Prompt:       p.Prompt,
			Difficulty:   p.Difficulty,
			NumQuestions: p.NumQuestions,
		})
		return err
	})
	if err != nil {
		return o.fail(r, StageGenerating, Inputs{FileRef: p.FileRef, Params: p}, err)
	}
	return o.finish(r, StageGenerating, GeneratedTest{FileRef: p.FileRef, TestID: gen.TestID, Metadata: gen.Metadata})
}

func (o *Orchestrator) load(r *run, l LoadingTest) error {
	var test *domain.Test
	err := o.stage(r, StageLoadingTest, func(ctx context.Context) (err error) {
		test, err = o.backend.GetTest(ctx, l.TestID)
		return err
	})
	if err == nil && test.ID != l.TestID {
		err = &gateway.Error{
			Kind:    gateway.KindServer,
			Op:      "GET /tests/" + l.TestID,
			Message: fmt.Sprintf("received test %s, expected %s", test.ID, l.TestID),
		}
	}
	if err != nil {
		return o.fail(r, StageLoadingTest, Inputs{FileRef: l.FileRef, TestID: l.TestID, Metadata: l.Metadata}, err)
	}
	return o.finish(r, StageLoadingTest, Taking{Test: test, Answers: domain.Answers{}})
}

func (o *Orchestrator) submit(r *run, test *domain.Test, answers domain.Answers) error {
	var result domain.SubmissionResult
	err := o.stage(r, StageSubmitting, func(ctx context.Context) (err error) {
		result, err = o.backend.Submit(ctx, test.ID, answers)
		return err
	})
	if err == nil {
		switch result.TestID {
		case "":
			result.TestID = test.ID
		case test.ID:
		default:
			err = &gateway.Error{
				Kind:    gateway.KindServer,
				Op:      "POST /tests/submit",
				Message: fmt.Sprintf("result is for test %s, expected %s", result.TestID, test.ID),
			}
		}
	}
	if err != nil {
		return o.fail(r, StageSubmitting, Inputs{Test: test, Answers: answers}, err)
	}
	if result.TestName == "" {
		result.TestName = test.Name
	}
	return o.finish(r, StageSubmitting, Results{Result: result})
}

// begin checks a trigger against the current state under the lock and, when
// enter accepts it, moves to the returned in-flight state.
func (o *Orchestrator) begin(ctx context.Context, enter func(State) (State, error)) (*run, error) {
	o.mu.Lock()
	if o.abandoned {
		o.mu.Unlock()
		return nil, ErrAbandoned
	}
	if o.running != nil {
		o.mu.Unlock()
		return nil, ErrInFlight
	}
	next, err := enter(o.state)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.epoch++
	r := &run{ctx: runCtx, cancel: cancel, epoch: o.epoch}
	o.running = r
	o.before = o.state
	t := o.setLocked(next)
	o.mu.Unlock()

	o.notify(t)
	return r, nil
}

// apply performs a local transition that involves no network call.
func (o *Orchestrator) apply(step func(State) (State, error)) error {
	o.mu.Lock()
	if o.abandoned {
		o.mu.Unlock()
		return ErrAbandoned
	}
	if o.running != nil {
		o.mu.Unlock()
		return ErrInFlight
	}
	next, err := step(o.state)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	t := o.setLocked(next)
	o.mu.Unlock()

	o.notify(t)
	return nil
}

func (o *Orchestrator) stage(r *run, s Stage, call func(ctx context.Context) error) error {
	ctx := r.ctx
	if d := o.cfg.timeout(s); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	start := time.Now()
	err := call(ctx)
	o.logger.Debug().
		Str("stage", string(s)).
		Uint64("epoch", r.epoch).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Bool("success", err == nil).
		Msg("stage completed")
	return err
}

// advance moves a multi-stage run to its next in-flight state.
func (o *Orchestrator) advance(r *run, s Stage, next State) error {
	o.mu.Lock()
	if o.running != r {
		o.mu.Unlock()
		return stale(s)
	}
	t := o.setLocked(next)
	o.mu.Unlock()
	o.notify(t)
	return nil
}

// finish applies a run's successful outcome and ends the run.
func (o *Orchestrator) finish(r *run, s Stage, next State) error {
	o.mu.Lock()
	if o.running != r {
		o.mu.Unlock()
		return stale(s)
	}
	o.running = nil
	r.cancel()
	t := o.setLocked(next)
	o.mu.Unlock()
	o.notify(t)
	return nil
}

// fail ends a run with err. A cancelled run goes back to the state before its
// trigger; anything else, including a deadline, becomes Failed.
func (o *Orchestrator) fail(r *run, s Stage, in Inputs, err error) error {
	o.mu.Lock()
	if o.running != r {
		o.mu.Unlock()
		return stale(s)
	}
	o.running = nil
	r.cancel()

	if gateway.KindOf(err) == gateway.KindCancelled && !gateway.IsTimeout(err) {
		t := o.setLocked(o.before)
		o.mu.Unlock()
		o.logger.Debug().Str("stage", string(s)).Msg("stage cancelled by caller")
		o.notify(t)
		return fmt.Errorf("%s: %w", s, err)
	}

	f := Failed{Stage: s, Reason: gateway.Reason(err), Kind: gateway.KindOf(err), Inputs: in}
	t := o.setLocked(f)
	o.mu.Unlock()

	o.logger.Warn().Err(err).Str("stage", string(s)).Str("kind", f.Kind.String()).Msg("stage failed")
	o.notify(t)
	return fmt.Errorf("%s: %w", s, err)
}

func (o *Orchestrator) setLocked(next State) Transition {
	t := Transition{InstanceID: o.id, From: o.state, To: next}
	o.state = next
	return t
}

func (o *Orchestrator) notify(t Transition) {
	o.mu.Lock()
	fns := make([]func(Transition), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}

func invalidTrigger(action string, s State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, s.Name())
}

func stale(s Stage) error {
	return &gateway.Error{Kind: gateway.KindCancelled, Op: string(s), Message: "stage cancelled", Err: context.Canceled}
}
