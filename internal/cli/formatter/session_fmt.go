package formatter

import (
	"strings"

	"github.com/alexanderramin/studygen/internal/domain"
)

// FormatSession renders the signed-in identity for `whoami` and the shell header.
func FormatSession(s domain.Session) string {
	if !s.Authenticated() {
		return Dim("Not logged in.")
	}
	var b strings.Builder
	name := s.DisplayName
	if name == "" {
		name = s.Email
	}
	b.WriteString(Bold(name))
	if s.Email != "" && s.Email != name {
		b.WriteString(" " + Dim("<"+s.Email+">"))
	}
	b.WriteString("  " + RoleBadge(s.Role))
	if !s.Verified {
		b.WriteString("  " + StyleYellow.Render("unverified"))
	}
	return b.String()
}

// SessionTag is the compact identity shown in the shell header.
func SessionTag(s domain.Session, resolved bool) string {
	if !resolved {
		return Dim("checking session...")
	}
	if !s.Authenticated() {
		return Dim("signed out")
	}
	name := s.DisplayName
	if name == "" {
		name = s.Email
	}
	return StyleGreen.Render(name) + " " + Dim("(") + RoleBadge(s.Role) + Dim(")")
}

// RoleBadge colors the role a session was granted.
func RoleBadge(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return StylePurple.Render("admin")
	case domain.RoleUser:
		return StyleGreen.Render("member")
	case domain.RoleGuest:
		return StyleYellow.Render("guest")
	default:
		return StyleDim.Render("signed out")
	}
}
