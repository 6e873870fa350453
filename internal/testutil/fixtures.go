package testutil

import (
	"fmt"
	"time"

	"github.com/alexanderramin/studygen/internal/domain"
)

// Accounts seeded by SeedUsers.
var (
	LearnerUser = FakeUser{ID: "u1", Username: "ada", Email: "ada@example.com", Password: "secret123", Role: "user", Verified: true}
	AdminUser   = FakeUser{ID: "u2", Username: "root", Email: "root@example.com", Password: "secret123", Role: "admin", Verified: true}
	GuestUser   = FakeUser{ID: "u3", Username: "visitor", Email: "guest@example.com", Password: "secret123", Role: "guest"}
)

// SeedUsers registers the learner, admin and guest accounts.
func (f *FakeAPI) SeedUsers() {
	f.AddUser(LearnerUser)
	f.AddUser(AdminUser)
	f.AddUser(GuestUser)
}

// Test options
type TestOption func(*domain.Test)

func WithTestName(name string) TestOption {
	return func(t *domain.Test) {
		t.Name = name
	}
}

func WithOptions(opts ...string) TestOption {
	return func(t *domain.Test) {
		for i := range t.Questions {
			t.Questions[i].Options = opts
		}
	}
}

// NewTestTest builds a test with questions q1..qn, each offering A-D.
func NewTestTest(id string, n int, opts ...TestOption) *domain.Test {
	t := &domain.Test{
		ID:          id,
		Name:        "Test " + id,
		Description: "generated for tests",
	}
	for i := 1; i <= n; i++ {
		t.Questions = append(t.Questions, domain.Question{
			ID:      fmt.Sprintf("q%d", i),
			Text:    fmt.Sprintf("Question %d", i),
			Options: []string{"A", "B", "C", "D"},
		})
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTestResult builds a submission result submitted at the given time.
func NewTestResult(testID string, score float64, at time.Time) domain.SubmissionResult {
	ts := at.UTC().Truncate(time.Second)
	return domain.SubmissionResult{
		TestID:      testID,
		TestName:    "Test " + testID,
		Score:       score,
		SubmittedAt: &ts,
	}
}
