package access

import (
	"context"
	"testing"

	"github.com/alexanderramin/studygen/internal/api"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/session"
	"github.com/alexanderramin/studygen/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(s domain.Session) session.Snapshot {
	return session.Snapshot{Session: s, Resolved: true, Version: 1}
}

func TestDecide(t *testing.T) {
	user := domain.Session{UserID: "u1", Role: domain.RoleUser}
	admin := domain.Session{UserID: "u2", Role: domain.RoleAdmin}
	guest := domain.Session{UserID: "u3", Role: domain.RoleGuest}

	tests := []struct {
		name     string
		snap     session.Snapshot
		required []domain.Role
		want     Decision
	}{
		{"unresolved is pending", session.Snapshot{}, Members, Pending},
		{"unauthenticated is denied", snapshot(domain.Unauthenticated), Members, Denied},
		{"user allowed for members", snapshot(user), Members, Allowed},
		{"admin allowed for members", snapshot(admin), Members, Allowed},
		{"guest denied for members", snapshot(guest), Members, Denied},
		{"user denied for admins", snapshot(user), Admins, Denied},
		{"admin allowed for admins", snapshot(admin), Admins, Allowed},
		{"guest denied even when listed", snapshot(guest), []domain.Role{domain.RoleGuest}, Denied},
		{"empty requirement denies", snapshot(user), nil, Denied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.snap, tt.required...))
		})
	}
}

func setup(t *testing.T) (*Gate, *session.Store, *api.Client, *testutil.FakeAPI) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	fake.SeedUsers()

	cfg := gateway.DefaultConfig()
	cfg.BaseURL = fake.URL()
	gw, err := gateway.New(cfg, nil, nil)
	require.NoError(t, err)
	client := api.NewClient(gw)
	store := session.NewStore(client, gw, zerolog.Nop())
	gw.OnUnauthorized(store.Invalidate)
	return NewGate(store), store, client, fake
}

// A fresh session whose identity check is rejected ends up denied, with no
// further identity fetches.
func TestGate_FreshSessionRejectedIsDenied(t *testing.T) {
	gate, store, _, fake := setup(t)
	ctx := context.Background()

	assert.Equal(t, Pending, gate.Authorize(Members...))

	_, err := store.Refresh(ctx)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	assert.Equal(t, Denied, gate.Authorize(Members...))
	assert.Equal(t, Denied, gate.Authorize(Members...))
	assert.Equal(t, 1, fake.Calls("GET /auth/me"))
}

func TestGate_RequireRefreshesPendingStoreOnce(t *testing.T) {
	gate, _, _, fake := setup(t)

	_, err := gate.Require(context.Background(), Members...)
	assert.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, err.Error(), "not logged in")

	_, err = gate.Require(context.Background(), Members...)
	assert.ErrorIs(t, err, ErrDenied)
	assert.Equal(t, 1, fake.Calls("GET /auth/me"))
}

func TestGate_RequireAllowsLearner(t *testing.T) {
	gate, store, _, _ := setup(t)
	_, err := store.Login(context.Background(), testutil.LearnerUser.Email, testutil.LearnerUser.Password)
	require.NoError(t, err)

	sess, err := gate.Require(context.Background(), Members...)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	_, err = gate.Require(context.Background(), Admins...)
	assert.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, err.Error(), `role "user"`)
}

func TestGate_GuestDenied(t *testing.T) {
	gate, store, _, _ := setup(t)
	_, err := store.Login(context.Background(), testutil.GuestUser.Email, testutil.GuestUser.Password)
	require.NoError(t, err)

	assert.Equal(t, Denied, gate.Authorize(Members...))
}

func TestGate_DeniedAfterExpiryStaysDeniedUntilRefresh(t *testing.T) {
	gate, store, client, fake := setup(t)
	ctx := context.Background()
	_, err := store.Login(ctx, testutil.LearnerUser.Email, testutil.LearnerUser.Password)
	require.NoError(t, err)
	require.Equal(t, Allowed, gate.Authorize(Members...))

	fake.ExpireSessions()
	_, err = client.Results(ctx)
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.Equal(t, Denied, gate.Authorize(Members...))

	// Logging back in goes through a refresh, which is the only way back.
	_, err = store.Login(ctx, testutil.LearnerUser.Email, testutil.LearnerUser.Password)
	require.NoError(t, err)
	assert.Equal(t, Allowed, gate.Authorize(Members...))
}
