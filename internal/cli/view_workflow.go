package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/workflow"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// Messages addressed to one workflow view. Each carries the orchestrator
// instance ID so a message outliving its view is dropped.
type (
	fileChosenMsg struct {
		instanceID string
		path       string
	}
	paramsChosenMsg struct {
		instanceID string
		fields     generationFields
	}
	stageDoneMsg struct {
		instanceID string
		err        error
	}
)

func (m fileChosenMsg) owner() string   { return m.instanceID }
func (m paramsChosenMsg) owner() string { return m.instanceID }
func (m stageDoneMsg) owner() string    { return m.instanceID }

// workflowView drives one orchestrator from file selection to results.
// Everything it renders is read from the orchestrator's current state.
type workflowView struct {
	state *SharedState
	orch  *workflow.Orchestrator
	spin  spinner.Model
	busy  bool
	err   error

	// Answering
	question int
	option   int
	lastTest *domain.Test
}

func newWorkflowView(state *SharedState) *workflowView {
	return &workflowView{
		state: state,
		orch:  state.App.newWorkflow(),
		spin:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(formatter.StylePurple)),
	}
}

func (v *workflowView) ID() ViewID    { return ViewWorkflow }
func (v *workflowView) Title() string { return "New test" }

func (v *workflowView) Init() tea.Cmd { return nil }

func (v *workflowView) owns(instanceID string) bool { return v.orch.ID() == instanceID }

// onLeave abandons the orchestrator; late responses are never applied.
func (v *workflowView) onLeave() {
	v.orch.Abandon()
}

func (v *workflowView) ShortHelp() []key.Binding {
	bind := func(k, desc string) key.Binding {
		return key.NewBinding(key.WithKeys(k), key.WithHelp(k, desc))
	}
	var keys []key.Binding
	switch v.orch.State().(type) {
	case workflow.Idle:
		keys = append(keys, bind("u", "upload file"))
	case workflow.Ready:
		keys = append(keys, bind("g", "generate test"))
	case workflow.GeneratedTest:
		keys = append(keys, bind("enter", "start test"))
	case workflow.Taking:
		keys = append(keys,
			key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑↓", "option")),
			bind("enter", "answer"),
			key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←→", "question")),
			bind("s", "submit"),
		)
	case workflow.Results:
		keys = append(keys, bind("v", "all results"))
	case workflow.Failed:
		keys = append(keys, bind("r", "retry"))
	}
	if workflow.InFlight(v.orch.State()) {
		keys = append(keys, bind("c", "cancel"))
	} else if _, idle := v.orch.State().(workflow.Idle); !idle {
		keys = append(keys, bind("x", "start over"))
	}
	return keys
}

func (v *workflowView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fileChosenMsg:
		if msg.instanceID != v.orch.ID() {
			return v, nil
		}
		path := strings.TrimSpace(msg.path)
		return v.startStage(func(ctx context.Context) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return gateway.Validation(fmt.Sprintf("cannot read %s", path), map[string]string{"file": err.Error()})
			}
			return v.orch.SelectFile(ctx, domain.NewDocument(path, data))
		})

	case paramsChosenMsg:
		if msg.instanceID != v.orch.ID() {
			return v, nil
		}
		ready, ok := v.orch.State().(workflow.Ready)
		if !ok {
			return v, nil
		}
		params, err := msg.fields.params(ready.FileRef)
		if err != nil {
			v.err = err
			return v, nil
		}
		return v.startStage(func(ctx context.Context) error {
			return v.orch.RequestGeneration(ctx, params)
		})

	case stageDoneMsg:
		if msg.instanceID != v.orch.ID() {
			return v, nil
		}
		return v.stageDone(msg.err)

	case spinner.TickMsg:
		if !v.busy {
			return v, nil
		}
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return v, nil
}

// startStage runs call off the UI loop and reports back with a stageDoneMsg.
func (v *workflowView) startStage(call func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	v.busy = true
	v.err = nil
	id, ctx := v.orch.ID(), v.state.Ctx
	return v, tea.Batch(v.spin.Tick, func() tea.Msg {
		return stageDoneMsg{instanceID: id, err: call(ctx)}
	})
}

func (v *workflowView) stageDone(err error) (tea.Model, tea.Cmd) {
	v.busy = false
	if _, taking := v.orch.State().(workflow.Taking); taking {
		v.syncCursor()
	}
	if err == nil {
		return v, nil
	}

	switch gateway.KindOf(err) {
	case gateway.KindCancelled:
		// Cancelled or superseded; the state already says what happened.
		return v, nil
	case gateway.KindUnauthorized:
		// The inputs are kept in the failed state; retry after logging in.
		v.err = err
		return v, pushView(newLoginView(v.state, nil))
	}
	if _, failed := v.orch.State().(workflow.Failed); failed {
		return v, nil
	}
	v.err = err
	return v, nil
}

func (v *workflowView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := v.orch.State()

	switch msg.String() {
	case "c":
		if workflow.InFlight(s) {
			v.orch.Cancel()
			return v, nil
		}
	case "x":
		if !workflow.InFlight(s) {
			v.orch.Reset()
			v.err = nil
			v.question, v.option = 0, 0
			v.lastTest = nil
			return v, nil
		}
	}

	if v.busy {
		return v, nil
	}

	switch st := s.(type) {
	case workflow.Idle:
		if msg.String() == "u" || msg.Type == tea.KeyEnter {
			return v, v.chooseFile()
		}

	case workflow.Ready:
		if msg.String() == "g" || msg.Type == tea.KeyEnter {
			return v, v.chooseParams()
		}

	case workflow.GeneratedTest:
		if msg.Type == tea.KeyEnter {
			return v.startStage(v.orch.LoadTest)
		}

	case workflow.Taking:
		return v.handleAnswerKey(msg, st)

	case workflow.Results:
		if msg.String() == "v" {
			return v, openGated(resultsTarget(v.state))
		}

	case workflow.Failed:
		if msg.String() == "r" {
			return v.startStage(v.orch.Retry)
		}
	}
	return v, nil
}

func (v *workflowView) handleAnswerKey(msg tea.KeyMsg, st workflow.Taking) (tea.Model, tea.Cmd) {
	questions := st.Test.Questions
	v.question = min(v.question, len(questions)-1)
	q := questions[v.question]

	switch msg.String() {
	case "up", "k":
		if v.option > 0 {
			v.option--
		}
	case "down", "j":
		if v.option < len(q.Options)-1 {
			v.option++
		}
	case "left", "h":
		if v.question > 0 {
			v.question--
			v.syncCursor()
		}
	case "right", "l", "tab":
		if v.question < len(questions)-1 {
			v.question++
			v.syncCursor()
		}
	case "enter":
		if err := v.orch.RecordAnswer(q.ID, q.Options[v.option]); err != nil {
			v.err = err
			return v, nil
		}
		v.err = nil
		if v.question < len(questions)-1 {
			v.question++
			v.syncCursor()
		}
	case "s":
		v.lastTest = st.Test
		return v.startStage(v.orch.Submit)
	}
	return v, nil
}

// syncCursor points the option cursor at the recorded answer, if any.
func (v *workflowView) syncCursor() {
	st, ok := v.orch.State().(workflow.Taking)
	if !ok || len(st.Test.Questions) == 0 {
		return
	}
	v.question = min(v.question, len(st.Test.Questions)-1)
	q := st.Test.Questions[v.question]
	v.option = 0
	for i, opt := range q.Options {
		if opt == st.Answers[q.ID] {
			v.option = i
		}
	}
}

func (v *workflowView) chooseFile() tea.Cmd {
	var path string
	id := v.orch.ID()
	form := newForm(huh.NewGroup(
		huh.NewInput().
			Title("Study file").
			Description("Path to a PDF, document or text file").
			Value(&path).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("enter a file path")
				}
				return nil
			}),
	))
	return startWizardCmd(v.state, "Upload", form, func() tea.Cmd {
		return func() tea.Msg { return fileChosenMsg{instanceID: id, path: path} }
	})
}

func (v *workflowView) chooseParams() tea.Cmd {
	fields := &generationFields{}
	id := v.orch.ID()
	return startWizardCmd(v.state, "Generate", wizardGenerate(fields), func() tea.Cmd {
		return func() tea.Msg { return paramsChosenMsg{instanceID: id, fields: *fields} }
	})
}

func (v *workflowView) View() string {
	s := v.orch.State()

	var b strings.Builder
	b.WriteString("\n  " + formatter.StatePill(s) + "\n\n")

	if workflow.InFlight(s) {
		b.WriteString("  " + v.spin.View() + " " + formatter.Dim(formatter.InFlightLabel(s)+"...") + "\n")
	}

	switch st := s.(type) {
	case workflow.Idle:
		b.WriteString(indent(formatter.Dim("Press u to upload a study file.")))
	case workflow.Ready:
		b.WriteString(indent(formatter.Dim("File scanned and ready. Press g to generate a test.")))
	case workflow.GeneratedTest:
		b.WriteString(indent(formatter.FormatTestSummary(st.TestID, st.Metadata)))
		b.WriteString("\n\n" + indent(formatter.Dim("Press enter to start.")))
	case workflow.Taking:
		q := st.Test.Questions[min(v.question, len(st.Test.Questions)-1)]
		b.WriteString(indent(formatter.FormatQuestion(q, v.question, len(st.Test.Questions), st.Answers[q.ID], v.option)))
		b.WriteString("\n" + indent(formatter.Dim(fmt.Sprintf("%d of %d answered", len(st.Answers), len(st.Test.Questions)))))
	case workflow.Results:
		b.WriteString(indent(formatter.FormatSubmission(st.Result, v.lastTest)))
	case workflow.Failed:
		b.WriteString(indent(formatter.FormatFailure(st)))
	}

	if v.err != nil {
		b.WriteString("\n\n" + indent(formatter.StyleRed.Render(describeError(v.err))))
	}
	return b.String() + "\n"
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "  " + l
		}
	}
	return strings.Join(lines, "\n")
}
