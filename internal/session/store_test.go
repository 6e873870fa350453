package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/studygen/internal/api"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}

	sess      domain.Session
	err       error
	logoutErr error
}

func newStubAuth() *stubAuth {
	return &stubAuth{started: make(chan struct{}, 16)}
}

func (s *stubAuth) Me(ctx context.Context) (domain.Session, error) {
	s.calls.Add(1)
	s.started <- struct{}{}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return domain.Unauthenticated, &gateway.Error{Kind: gateway.KindCancelled, Err: ctx.Err()}
		}
	}
	return s.sess, s.err
}

func (s *stubAuth) Login(ctx context.Context, email, password string) error { return nil }

func (s *stubAuth) Logout(ctx context.Context) error { return s.logoutErr }

type clearRecorder struct{ cleared int }

func (c *clearRecorder) ClearCredentials(ctx context.Context) error {
	c.cleared++
	return nil
}

type snapshotLog struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (l *snapshotLog) record(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps = append(l.snaps, s)
}

func (l *snapshotLog) all() []Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Snapshot(nil), l.snaps...)
}

var learner = domain.Session{UserID: "u1", DisplayName: "ada", Email: "ada@example.com", Role: domain.RoleUser, Verified: true}

func TestStore_StartsUnresolved(t *testing.T) {
	s := NewStore(newStubAuth(), nil, zerolog.Nop())
	snap := s.Current()
	assert.False(t, snap.Resolved)
	assert.False(t, snap.Session.Authenticated())
	assert.Zero(t, snap.Version)
}

func TestStore_RefreshSuccess(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	s := NewStore(auth, nil, zerolog.Nop())
	var log snapshotLog
	s.Subscribe(log.record)

	got, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, learner, got)

	snap := s.Current()
	assert.True(t, snap.Resolved)
	assert.Equal(t, learner, snap.Session)
	assert.Equal(t, uint64(1), snap.Version)
	require.Len(t, log.all(), 1)
	assert.Equal(t, snap, log.all()[0])
}

func TestStore_RefreshFailureLeavesUnauthenticated(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	s := NewStore(auth, nil, zerolog.Nop())
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	auth.err = &gateway.Error{Kind: gateway.KindNetwork, Err: errors.New("connection refused")}
	got, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, gateway.ErrNetworkFailure)
	assert.False(t, got.Authenticated())

	snap := s.Current()
	assert.True(t, snap.Resolved)
	assert.False(t, snap.Session.Authenticated())
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, int32(2), auth.calls.Load(), "failures are not retried")
}

func TestStore_ConcurrentRefreshesShareOneFetch(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	auth.release = make(chan struct{})
	s := NewStore(auth, nil, zerolog.Nop())

	const callers = 5
	var wg sync.WaitGroup
	results := make([]domain.Session, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := s.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = sess
		}(i)
	}

	<-auth.started
	time.Sleep(50 * time.Millisecond)
	close(auth.release)
	wg.Wait()

	assert.Equal(t, int32(1), auth.calls.Load())
	for _, r := range results {
		assert.Equal(t, learner, r)
	}
	assert.Equal(t, uint64(1), s.Current().Version)
}

func TestStore_InvalidateNotifiesImmediatelyWhenIdle(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	s := NewStore(auth, nil, zerolog.Nop())
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	var log snapshotLog
	s.Subscribe(log.record)
	s.Invalidate()

	snaps := log.all()
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].Session.Authenticated())
	assert.True(t, snaps[0].Resolved)
	assert.Equal(t, uint64(2), snaps[0].Version)
}

func TestStore_InvalidateDuringRefreshDefersNotification(t *testing.T) {
	auth := newStubAuth()
	auth.err = &gateway.Error{Kind: gateway.KindUnauthorized, Status: http.StatusUnauthorized}
	auth.release = make(chan struct{})
	s := NewStore(auth, nil, zerolog.Nop())
	var log snapshotLog
	s.Subscribe(log.record)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Refresh(context.Background())
	}()
	<-auth.started

	s.Invalidate()
	assert.Empty(t, log.all(), "no notification while the refresh is pending")
	assert.False(t, s.Current().Session.Authenticated())

	close(auth.release)
	<-done

	snaps := log.all()
	require.Len(t, snaps, 1, "subscribers hear once, after the refresh settles")
	assert.False(t, snaps[0].Session.Authenticated())
	assert.Equal(t, s.Current(), snaps[0])
}

func TestStore_CancelledWaitLeavesFetchRunning(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	auth.release = make(chan struct{})
	s := NewStore(auth, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Refresh(ctx)
		done <- err
	}()
	<-auth.started
	cancel()

	err := <-done
	assert.ErrorIs(t, err, gateway.ErrCancelled)
	assert.False(t, s.Current().Resolved, "a cancelled wait does not resolve the session")

	close(auth.release)
	require.Eventually(t, func() bool { return s.Current().Resolved }, time.Second, 5*time.Millisecond)
	assert.Equal(t, learner, s.Current().Session)
}

func TestStore_JoinedCallerGetsOutcomeWhenFirstCallerCancels(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	auth.release = make(chan struct{})
	s := NewStore(auth, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.Refresh(ctx)
		first <- err
	}()
	<-auth.started

	type outcome struct {
		sess domain.Session
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		sess, err := s.Refresh(context.Background())
		second <- outcome{sess, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, gateway.ErrCancelled)

	close(auth.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, learner, got.sess)
	assert.Equal(t, int32(1), auth.calls.Load())
}

func TestStore_LogoutDuringRefreshDiscardsFetchedSession(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	auth.release = make(chan struct{})
	s := NewStore(auth, nil, zerolog.Nop())
	var log snapshotLog
	s.Subscribe(log.record)

	type outcome struct {
		sess domain.Session
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		sess, err := s.Refresh(context.Background())
		done <- outcome{sess, err}
	}()
	<-auth.started

	require.NoError(t, s.Logout(context.Background()))
	assert.Empty(t, log.all())

	close(auth.release)
	got := <-done

	assert.ErrorIs(t, got.err, gateway.ErrUnauthorized)
	assert.False(t, got.sess.Authenticated())
	snap := s.Current()
	assert.False(t, snap.Session.Authenticated(), "logged out session came back")
	assert.True(t, snap.Resolved)

	snaps := log.all()
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].Session.Authenticated())
}

func TestStore_RefreshAfterInvalidateDoesNotJoinStaleFetch(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	auth.release = make(chan struct{})
	s := NewStore(auth, nil, zerolog.Nop())

	stale := make(chan struct{})
	go func() {
		defer close(stale)
		s.Refresh(context.Background())
	}()
	<-auth.started
	s.Invalidate()

	fresh := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		fresh <- err
	}()
	<-auth.started

	close(auth.release)
	require.NoError(t, <-fresh)
	<-stale

	assert.Equal(t, int32(2), auth.calls.Load())
	assert.Equal(t, learner, s.Current().Session)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(newStubAuth(), nil, zerolog.Nop())
	var log snapshotLog
	unsubscribe := s.Subscribe(log.record)
	unsubscribe()
	s.Invalidate()
	assert.Empty(t, log.all())
}

func TestStore_LogoutInvalidatesEvenOnFailure(t *testing.T) {
	auth := newStubAuth()
	auth.sess = learner
	clearer := &clearRecorder{}
	s := NewStore(auth, clearer, zerolog.Nop())
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	auth.logoutErr = &gateway.Error{Kind: gateway.KindServer, Status: 500}
	err = s.Logout(context.Background())
	assert.ErrorIs(t, err, gateway.ErrServerFailure)
	assert.Equal(t, 1, clearer.cleared)
	assert.False(t, s.Current().Session.Authenticated())
}

func TestStore_LogoutIgnoresExpiredSession(t *testing.T) {
	auth := newStubAuth()
	auth.logoutErr = &gateway.Error{Kind: gateway.KindUnauthorized, Status: 401}
	s := NewStore(auth, &clearRecorder{}, zerolog.Nop())
	assert.NoError(t, s.Logout(context.Background()))
}

// setupBackend wires the store to a fake backend the way main does.
func setupBackend(t *testing.T) (*Store, *api.Client, *testutil.FakeAPI) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	fake.SeedUsers()

	cfg := gateway.DefaultConfig()
	cfg.BaseURL = fake.URL()
	gw, err := gateway.New(cfg, nil, nil)
	require.NoError(t, err)
	client := api.NewClient(gw)
	store := NewStore(client, gw, zerolog.Nop())
	gw.OnUnauthorized(store.Invalidate)
	return store, client, fake
}

func TestStore_LoginAgainstBackend(t *testing.T) {
	store, _, fake := setupBackend(t)
	ctx := context.Background()

	sess, err := store.Login(ctx, testutil.LearnerUser.Email, testutil.LearnerUser.Password)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, domain.RoleUser, sess.Role)
	assert.Equal(t, 1, fake.Calls("GET /auth/me"))
	assert.True(t, store.Current().Session.Authenticated())
}

func TestStore_LoginRejected(t *testing.T) {
	store, _, _ := setupBackend(t)
	_, err := store.Login(context.Background(), testutil.LearnerUser.Email, "wrong")
	assert.ErrorIs(t, err, gateway.ErrValidation)
	assert.False(t, store.Current().Resolved)
}

func TestStore_UnauthorizedResponseInvalidates(t *testing.T) {
	store, client, fake := setupBackend(t)
	ctx := context.Background()
	_, err := store.Login(ctx, testutil.LearnerUser.Email, testutil.LearnerUser.Password)
	require.NoError(t, err)
	var log snapshotLog
	store.Subscribe(log.record)

	fake.ExpireSessions()
	_, err = client.Results(ctx)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	assert.False(t, store.Current().Session.Authenticated())
	require.Len(t, log.all(), 1)
}

func TestStore_LogoutAgainstBackend(t *testing.T) {
	store, _, fake := setupBackend(t)
	ctx := context.Background()
	_, err := store.Login(ctx, testutil.LearnerUser.Email, testutil.LearnerUser.Password)
	require.NoError(t, err)

	require.NoError(t, store.Logout(ctx))
	assert.Equal(t, 1, fake.Calls("POST /auth/logout"))

	sess, err := store.Refresh(ctx)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.False(t, sess.Authenticated())
}
