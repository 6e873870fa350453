package domain

import (
	"fmt"
	"maps"
	"slices"
)

type Question struct {
	ID      string
	Text    string
	Options []string
}

// HasOption reports whether opt is one of the question's options.
func (q Question) HasOption(opt string) bool {
	return slices.Contains(q.Options, opt)
}

type Test struct {
	ID          string
	Name        string
	Description string
	Questions   []Question
}

// Question returns the question with the given ID.
func (t *Test) Question(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Validate checks the structural invariants a test must satisfy before it can be taken.
func (t *Test) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("test has no id")
	}
	if len(t.Questions) == 0 {
		return fmt.Errorf("test %s has no questions", t.ID)
	}
	seen := make(map[string]bool, len(t.Questions))
	for i, q := range t.Questions {
		if q.ID == "" {
			return fmt.Errorf("question %d of test %s has no id", i+1, t.ID)
		}
		if seen[q.ID] {
			return fmt.Errorf("test %s has duplicate question id %s", t.ID, q.ID)
		}
		seen[q.ID] = true
		if len(q.Options) == 0 {
			return fmt.Errorf("question %s has no options", q.ID)
		}
	}
	return nil
}

// Answers maps question IDs to the selected option.
type Answers map[string]string

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	if a == nil {
		return Answers{}
	}
	return maps.Clone(a)
}

// CheckAgainst verifies every answer references a question (and option) of t.
func (a Answers) CheckAgainst(t *Test) error {
	for qid, opt := range a {
		q, ok := t.Question(qid)
		if !ok {
			return fmt.Errorf("question %s is not part of test %s", qid, t.ID)
		}
		if !q.HasOption(opt) {
			return fmt.Errorf("%q is not an option of question %s", opt, qid)
		}
	}
	return nil
}

// TestMetadata describes a generated test before its questions are fetched.
type TestMetadata struct {
	Name         string
	Description  string
	Difficulty   Difficulty
	NumQuestions int
}
