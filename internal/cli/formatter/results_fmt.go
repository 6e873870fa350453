package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/studygen/internal/service"
)

// FormatHistory renders a results history as a table with a summary line.
// A stale history is flagged with the time of the offline copy.
func FormatHistory(h *service.History, now time.Time) string {
	var b strings.Builder
	b.WriteString(Header("Results"))
	b.WriteString("\n")

	if h.Stale {
		b.WriteString(StyleYellow.Render("Offline copy from "+Ago(h.FetchedAt, now)) +
			" " + Dim("("+h.FetchedAt.Local().Format("2006-01-02 15:04")+")"))
		b.WriteString("\n")
	}

	if len(h.Results) == 0 {
		b.WriteString(Dim("No submitted tests yet."))
		b.WriteString("\n")
		return b.String()
	}

	rows := make([][]string, 0, len(h.Results))
	var total float64
	passed := 0
	for _, r := range h.Results {
		name := r.TestName
		if name == "" {
			name = r.TestID
		}
		correct := Dim("—")
		if n := r.CorrectCount(); n >= 0 {
			correct = fmt.Sprintf("%d/%d", n, len(r.Correctness))
		}
		when := Dim("—")
		if r.SubmittedAt != nil {
			when = Ago(*r.SubmittedAt, now)
		}
		rows = append(rows, []string{
			ShortID(r.TestID),
			Truncate(name, 32),
			Score(r.Score),
			correct,
			when,
		})
		total += r.Score
		if r.Passed(PassMark) {
			passed++
		}
	}
	b.WriteString(RenderTable([]string{"ID", "TEST", "SCORE", "CORRECT", "SUBMITTED"}, rows, 2, 3))
	b.WriteString("\n")
	avg := total / float64(len(h.Results))
	b.WriteString(Dim(fmt.Sprintf("%d tests · %d passed · average ", len(h.Results), passed)) + Score(avg))
	b.WriteString("\n")
	return b.String()
}
