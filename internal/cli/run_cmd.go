package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/workflow"
	"github.com/spf13/cobra"
)

type runOptions struct {
	file       string
	topic      string
	difficulty string
	count      int
	answers    string
	retries    int
}

func newRunCmd(app *App) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Upload a study file, take a generated test and see your score",
		Example: `  studygen run --file notes.pdf --topic "Cell biology" --difficulty easy --count 5
  studygen run --file notes.pdf --topic Biology --count 3 --answers q1=B,q2=A,q3=C`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := newRunner(cmd, app, opts)
			defer r.close()
			return r.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Study file to upload")
	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "Topic the questions should focus on")
	cmd.Flags().StringVarP(&opts.difficulty, "difficulty", "d", string(domain.DifficultyMedium), "Difficulty (easy, medium, hard)")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 10, "Number of questions")
	cmd.Flags().StringVar(&opts.answers, "answers", "", "Answers as q1=B,q2=A (prompted when omitted)")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Automatic retries per failed stage")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// runner drives one orchestrator through the whole workflow for `run`.
type runner struct {
	cmd    *cobra.Command
	app    *App
	opts   runOptions
	orch   *workflow.Orchestrator
	out    io.Writer
	errOut io.Writer

	mu   sync.Mutex
	spin *formatter.Spinner

	unsubscribe func()
}

func newRunner(cmd *cobra.Command, app *App, opts runOptions) *runner {
	r := &runner{
		cmd:    cmd,
		app:    app,
		opts:   opts,
		orch:   app.newWorkflow(),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}
	r.unsubscribe = r.orch.Subscribe(r.onTransition)
	return r
}

func (r *runner) close() {
	r.stopSpinner()
	r.unsubscribe()
	r.orch.Abandon()
}

func (r *runner) run(ctx context.Context) error {
	// Resolve the session up front; the orchestrator only sees the gate's
	// current decision.
	if _, err := r.app.Gate.Require(ctx, access.Members...); err != nil {
		return userError(err)
	}

	data, err := os.ReadFile(r.opts.file)
	if err != nil {
		return fmt.Errorf("reading study file: %w", err)
	}
	doc := domain.NewDocument(r.opts.file, data)

	if err := r.step(ctx, func() error { return r.orch.SelectFile(ctx, doc) }); err != nil {
		return err
	}
	ready, err := expect[workflow.Ready](r.orch)
	if err != nil {
		return err
	}

	params, err := r.generationParams(ready.FileRef)
	if err != nil {
		return err
	}
	if err := r.step(ctx, func() error { return r.orch.RequestGeneration(ctx, params) }); err != nil {
		return err
	}
	generated, err := expect[workflow.GeneratedTest](r.orch)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, formatter.FormatTestSummary(generated.TestID, generated.Metadata))
	fmt.Fprintln(r.out)

	if err := r.step(ctx, func() error { return r.orch.LoadTest(ctx) }); err != nil {
		return err
	}
	taking, err := expect[workflow.Taking](r.orch)
	if err != nil {
		return err
	}

	if err := r.collectAnswers(taking.Test); err != nil {
		return err
	}

	if err := r.step(ctx, func() error { return r.orch.Submit(ctx) }); err != nil {
		return err
	}
	results, err := expect[workflow.Results](r.orch)
	if err != nil {
		return err
	}
	fmt.Fprint(r.out, formatter.FormatSubmission(results.Result, taking.Test))
	return nil
}

// step runs call and, when it leaves the workflow Failed, retries it
// automatically up to --retries times and then, on a terminal, asks.
func (r *runner) step(ctx context.Context, call func() error) error {
	attempts := 0
	for {
		err := call()
		r.stopSpinner()
		if err == nil {
			return nil
		}

		failed, ok := r.orch.State().(workflow.Failed)
		if !ok || !r.shouldRetry(failed, &attempts) {
			return userError(err)
		}
		call = func() error { return r.orch.Retry(ctx) }
	}
}

func (r *runner) shouldRetry(f workflow.Failed, attempts *int) bool {
	switch f.Kind {
	case gateway.KindUnauthorized, gateway.KindValidation:
		return false
	}
	if *attempts < r.opts.retries {
		*attempts++
		fmt.Fprintf(r.errOut, "%s failed (%s), retrying %d/%d\n", formatter.StageLabel(f.Stage), f.Reason, *attempts, r.opts.retries)
		return true
	}
	if !r.app.interactive() {
		return false
	}
	fmt.Fprintln(r.errOut, formatter.FormatFailure(f))
	var again bool
	if err := runForm(r.cmd, wizardConfirm("Retry?", &again)); err != nil {
		return false
	}
	return again
}

func (r *runner) generationParams(fileRef string) (workflow.GenerationParams, error) {
	fields := generationFields{
		prompt:     r.opts.topic,
		difficulty: r.opts.difficulty,
		count:      fmt.Sprint(r.opts.count),
	}
	if strings.TrimSpace(fields.prompt) == "" && r.app.interactive() {
		if err := runForm(r.cmd, wizardGenerate(&fields)); err != nil {
			return workflow.GenerationParams{}, err
		}
	}
	return fields.params(fileRef)
}

func (r *runner) collectAnswers(test *domain.Test) error {
	if r.opts.answers != "" {
		answers, err := parseAnswers(r.opts.answers)
		if err != nil {
			return err
		}
		for _, qid := range slices.Sorted(maps.Keys(answers)) {
			if err := r.orch.RecordAnswer(qid, answers[qid]); err != nil {
				return userError(fmt.Errorf("answer %s: %w", qid, err))
			}
		}
		return nil
	}

	if !r.app.interactive() {
		for i, q := range test.Questions {
			fmt.Fprintln(r.out, formatter.FormatQuestion(q, i, len(test.Questions), "", -1))
		}
		return errors.New("no answers given: pass --answers q1=A,q2=B or run in a terminal")
	}

	for i, q := range test.Questions {
		var choice string
		if err := runForm(r.cmd, wizardAnswer(q, i, len(test.Questions), &choice)); err != nil {
			return err
		}
		if err := r.orch.RecordAnswer(q.ID, choice); err != nil {
			return userError(err)
		}
	}
	return nil
}

func (r *runner) onTransition(tr workflow.Transition) {
	r.app.Logger.Debug().
		Str("workflow_id", tr.InstanceID).
		Str("from", tr.From.Name()).
		Str("to", tr.To.Name()).
		Msg("workflow transition")

	label := formatter.InFlightLabel(tr.To)
	if label == "" || !r.app.interactive() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spin == nil {
		r.spin = formatter.NewSpinner(r.errOut, label+"...")
		r.spin.Start()
		return
	}
	r.spin.SetMessage(label + "...")
}

func (r *runner) stopSpinner() {
	r.mu.Lock()
	spin := r.spin
	r.spin = nil
	r.mu.Unlock()
	if spin != nil {
		spin.Stop()
	}
}

// parseAnswers parses "q1=B,q2=A". Whitespace around parts is ignored.
func parseAnswers(s string) (domain.Answers, error) {
	answers := domain.Answers{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		qid, opt, ok := strings.Cut(part, "=")
		qid, opt = strings.TrimSpace(qid), strings.TrimSpace(opt)
		if !ok || qid == "" || opt == "" {
			return nil, fmt.Errorf("invalid answer %q: want question=option", part)
		}
		answers[qid] = opt
	}
	if len(answers) == 0 {
		return nil, errors.New("no answers in --answers")
	}
	return answers, nil
}

// expect returns the orchestrator's state as T, or an error naming the
// state it is actually in.
func expect[T workflow.State](o *workflow.Orchestrator) (T, error) {
	s := o.State()
	if t, ok := s.(T); ok {
		return t, nil
	}
	var zero T
	return zero, fmt.Errorf("workflow is %s, expected %s", s.Name(), zero.Name())
}
