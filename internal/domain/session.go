package domain

import "slices"

// Session is the client's cached view of the authenticated identity.
// The zero value is Unauthenticated.
type Session struct {
	UserID      string
	DisplayName string
	Email       string
	Role        Role
	Verified    bool
}

// Unauthenticated is the session held when nobody is logged in.
var Unauthenticated = Session{}

// Authenticated reports whether the session carries an identity.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// HasRole reports whether the session is authenticated with one of the given roles.
// Guests never satisfy a role check, even when RoleGuest is listed.
func (s Session) HasRole(roles ...Role) bool {
	if !s.Authenticated() || s.Role == RoleGuest || s.Role == "" {
		return false
	}
	return slices.Contains(roles, s.Role)
}
