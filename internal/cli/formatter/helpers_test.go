package formatter

import (
	"testing"
	"time"

	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAgo(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"now", now, "just now"},
		{"future", now.Add(time.Hour), "just now"},
		{"seconds", now.Add(-30 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-2 * time.Hour), "2h ago"},
		{"one day", now.Add(-24 * time.Hour), "Yesterday"},
		{"days", now.Add(-3 * 24 * time.Hour), "3d ago"},
		{"weeks", now.Add(-21 * 24 * time.Hour), "3w ago"},
		{"months", time.Date(2025, 9, 30, 12, 0, 0, 0, time.Local), "Sep 30, 2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ago(tt.at, now))
		})
	}
}

func TestRoleBadge(t *testing.T) {
	tests := []struct {
		role     domain.Role
		contains string
	}{
		{domain.RoleAdmin, "admin"},
		{domain.RoleUser, "member"},
		{domain.RoleGuest, "guest"},
		{"", "signed out"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Contains(t, RoleBadge(tt.role), tt.contains)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "cell bio…", Truncate("cell biology", 9))
	assert.Equal(t, "…", Truncate("cell biology", 1))
	assert.Equal(t, "zellulär…", Truncate("zellulärbiologie", 9))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
}

func TestScore(t *testing.T) {
	assert.Contains(t, Score(33.333), "33.3%")
	assert.Contains(t, Score(100), "100.0%")
	assert.Equal(t, StyleRed.GetForeground(), ScoreStyle(49.9).GetForeground())
	assert.Equal(t, StyleYellow.GetForeground(), ScoreStyle(50).GetForeground())
	assert.Equal(t, StyleGreen.GetForeground(), ScoreStyle(80).GetForeground())
}

func TestShortID(t *testing.T) {
	got := ShortID("a1b2c3d4-e5f6-7890-abcd-ef1234567890")
	assert.Contains(t, got, "a1b2c3d4")
	assert.NotContains(t, got, "e5f6")
	assert.Contains(t, ShortID("t1"), "t1")
}
