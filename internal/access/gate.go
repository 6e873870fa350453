// Package access decides whether the current session may enter a gated
// view or command. Decisions are recomputed from the latest session
// snapshot on every call.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/session"
)

// ErrDenied is returned by Require when the session lacks a required role.
var ErrDenied = errors.New("access denied")

type Decision int

const (
	Pending Decision = iota
	Allowed
	Denied
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	default:
		return "pending"
	}
}

// Role presets for gated surfaces.
var (
	Members = []domain.Role{domain.RoleUser, domain.RoleAdmin}
	Admins  = []domain.Role{domain.RoleAdmin}
)

// SessionSource is the part of session.Store the gate reads.
type SessionSource interface {
	Current() session.Snapshot
	Refresh(ctx context.Context) (domain.Session, error)
}

type Gate struct {
	sessions SessionSource
}

func NewGate(sessions SessionSource) *Gate {
	return &Gate{sessions: sessions}
}

// Decide is the gate rule applied to one snapshot.
func Decide(snap session.Snapshot, required ...domain.Role) Decision {
	if !snap.Resolved {
		return Pending
	}
	if snap.Session.HasRole(required...) {
		return Allowed
	}
	return Denied
}

// Authorize evaluates the gate against the latest session snapshot.
func (g *Gate) Authorize(required ...domain.Role) Decision {
	return Decide(g.sessions.Current(), required...)
}

// Require is the blocking form used by one-shot commands. A store that has
// never resolved is refreshed once before deciding.
func (g *Gate) Require(ctx context.Context, required ...domain.Role) (domain.Session, error) {
	snap := g.sessions.Current()
	if !snap.Resolved {
		if _, err := g.sessions.Refresh(ctx); err != nil && ctx.Err() != nil {
			return domain.Unauthenticated, fmt.Errorf("checking session: %w", err)
		}
		snap = g.sessions.Current()
	}

	switch Decide(snap, required...) {
	case Allowed:
		return snap.Session, nil
	case Pending:
		return domain.Unauthenticated, fmt.Errorf("%w: session could not be verified", ErrDenied)
	}
	if !snap.Session.Authenticated() {
		return domain.Unauthenticated, fmt.Errorf("%w: not logged in", ErrDenied)
	}
	return snap.Session, fmt.Errorf("%w: role %q is not one of %s", ErrDenied, snap.Session.Role, roleList(required))
}

func roleList(roles []domain.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return "{" + strings.Join(names, ", ") + "}"
}
