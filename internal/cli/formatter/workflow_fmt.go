package formatter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/workflow"
)

var stageLabels = map[workflow.Stage]string{
	workflow.StageUploading:   "Uploading file",
	workflow.StageScanning:    "Scanning file",
	workflow.StageGenerating:  "Generating test",
	workflow.StageLoadingTest: "Loading test",
	workflow.StageSubmitting:  "Submitting answers",
}

// StageLabel returns the progress label for a stage.
func StageLabel(s workflow.Stage) string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// InFlightLabel returns the progress label for an in-flight state, or "" for
// states that are not waiting on the network.
func InFlightLabel(s workflow.State) string {
	switch s.(type) {
	case workflow.Uploading:
		return StageLabel(workflow.StageUploading)
	case workflow.Scanning:
		return StageLabel(workflow.StageScanning)
	case workflow.Generating:
		return StageLabel(workflow.StageGenerating)
	case workflow.LoadingTest:
		return StageLabel(workflow.StageLoadingTest)
	case workflow.Submitting:
		return StageLabel(workflow.StageSubmitting)
	}
	return ""
}

// StatePill returns a colored one-line indicator for a workflow state.
func StatePill(s workflow.State) string {
	switch st := s.(type) {
	case workflow.Idle:
		return StyleDim.Render("○ No file selected")
	case workflow.Ready:
		return StyleGreen.Render("● File ready") + " " + Dim(st.FileRef)
	case workflow.GeneratedTest:
		return StyleGreen.Render("● Test generated") + " " + Dim(st.TestID)
	case workflow.Taking:
		return StyleBlue.Render(fmt.Sprintf("● Answering %d/%d", len(st.Answers), len(st.Test.Questions)))
	case workflow.Results:
		return StylePurple.Render("✔ Submitted") + " " + Score(st.Result.Score)
	case workflow.Failed:
		return StyleRed.Render("✖ "+StageLabel(st.Stage)+" failed") + " " + Dim(st.Reason)
	default:
		return StyleYellow.Render("◌ " + InFlightLabel(s) + "...")
	}
}

// FailureHint suggests what the user can do about a failed stage.
func FailureHint(f workflow.Failed) string {
	switch f.Kind {
	case gateway.KindNetwork:
		if f.Reason == "timeout" {
			return "The server took too long to answer. Retry when ready."
		}
		return "Could not reach the server. Check your connection and retry."
	case gateway.KindServer:
		return "The server had a problem. Retrying usually helps."
	case gateway.KindValidation:
		return "The server rejected the request. Adjust your input and start again."
	case gateway.KindUnauthorized:
		return "Your session has expired. Log in again, then retry."
	default:
		return "Retry or reset the workflow."
	}
}

// FormatFailure renders a failed stage with its reason and a hint.
func FormatFailure(f workflow.Failed) string {
	var b strings.Builder
	b.WriteString(StyleRed.Render(StageLabel(f.Stage) + " failed: " + f.Reason))
	b.WriteString("\n")
	b.WriteString(Dim(FailureHint(f)))
	return b.String()
}

// FormatTestSummary renders the metadata of a generated test.
func FormatTestSummary(testID string, meta domain.TestMetadata) string {
	var b strings.Builder
	name := meta.Name
	if name == "" {
		name = testID
	}
	b.WriteString(Bold(name))
	b.WriteString("\n")
	if meta.Description != "" {
		b.WriteString(Dim(meta.Description))
		b.WriteString("\n")
	}
	var facts []string
	if meta.Difficulty != "" {
		facts = append(facts, string(meta.Difficulty))
	}
	if meta.NumQuestions > 0 {
		facts = append(facts, fmt.Sprintf("%d questions", meta.NumQuestions))
	}
	facts = append(facts, "id "+testID)
	b.WriteString(Dim(strings.Join(facts, " · ")))
	return b.String()
}

// FormatQuestion renders one question with its options. The option under
// the cursor is marked with ▸ and the recorded answer with ✔. A cursor of
// -1 hides the marker.
func FormatQuestion(q domain.Question, index, total int, selected string, cursor int) string {
	var b strings.Builder
	b.WriteString(Dim(fmt.Sprintf("Question %d of %d", index+1, total)))
	b.WriteString("\n")
	b.WriteString(Bold(q.Text))
	b.WriteString("\n\n")
	for i, opt := range q.Options {
		marker := "  "
		style := StyleFg
		if i == cursor {
			marker = StyleGreen.Render("▸ ")
			style = StyleBold
		}
		check := "  "
		if opt == selected {
			check = StyleGreen.Render("✔ ")
		}
		b.WriteString(marker + check + style.Render(opt) + "\n")
	}
	return b.String()
}

// FormatSubmission renders a submission result, with per-question
// correctness when the server reported it.
func FormatSubmission(r domain.SubmissionResult, test *domain.Test) string {
	var b strings.Builder
	name := r.TestName
	if name == "" {
		name = r.TestID
	}
	b.WriteString(Header("Result"))
	b.WriteString("\n")
	b.WriteString(Bold(name) + "  " + Score(r.Score))
	if r.Passed(PassMark) {
		b.WriteString("  " + StyleGreen.Render("passed"))
	} else {
		b.WriteString("  " + StyleRed.Render("not passed"))
	}
	b.WriteString("\n")

	if r.Correctness == nil {
		return b.String()
	}

	b.WriteString(Dim(fmt.Sprintf("%d of %d correct", r.CorrectCount(), len(r.Correctness))))
	b.WriteString("\n\n")

	ids := questionOrder(r.Correctness, test)
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		mark := StyleRed.Render("✖")
		if r.Correctness[id] {
			mark = StyleGreen.Render("✔")
		}
		text := ""
		if test != nil {
			if q, ok := test.Question(id); ok {
				text = Truncate(q.Text, 60)
			}
		}
		rows = append(rows, []string{id, mark, text})
	}
	b.WriteString(RenderTable([]string{"Q", "OK", "QUESTION"}, rows))
	return b.String()
}

// questionOrder lists the graded question IDs in test order, falling back to
// sorted order for IDs the test does not know.
func questionOrder(graded map[string]bool, test *domain.Test) []string {
	ids := make([]string, 0, len(graded))
	seen := make(map[string]bool, len(graded))
	if test != nil {
		for _, q := range test.Questions {
			if _, ok := graded[q.ID]; ok {
				ids = append(ids, q.ID)
				seen[q.ID] = true
			}
		}
	}
	var rest []string
	for id := range graded {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	slices.Sort(rest)
	return append(ids, rest...)
}
