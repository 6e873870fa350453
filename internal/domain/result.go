package domain

import "time"

// SubmissionResult is the server's verdict on one submitted test.
type SubmissionResult struct {
	TestID      string
	TestName    string
	Score       float64 // percentage, 0-100
	Correctness map[string]bool
	SubmittedAt *time.Time
}

// Passed reports whether the score meets the given threshold percentage.
func (r SubmissionResult) Passed(threshold float64) bool {
	return r.Score >= threshold
}

// CorrectCount returns how many questions were marked correct, or -1 if the
// server did not report per-question correctness.
func (r SubmissionResult) CorrectCount() int {
	if r.Correctness == nil {
		return -1
	}
	n := 0
	for _, ok := range r.Correctness {
		if ok {
			n++
		}
	}
	return n
}
