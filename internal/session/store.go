// Package session holds the process-wide cache of the authenticated identity.
//
// Store is the single writer of the current Session: only Refresh and
// Invalidate replace it, always wholesale. Everything else reads immutable
// Snapshots or subscribes to changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds a shared identity fetch. It runs detached from the
// callers' contexts, so something other than them has to end it.
const refreshTimeout = 30 * time.Second

const refreshKey = "refresh"

// Authenticator is the backend surface the store needs.
type Authenticator interface {
	Me(ctx context.Context) (domain.Session, error)
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
}

// CredentialClearer drops the locally held session credential.
type CredentialClearer interface {
	ClearCredentials(ctx context.Context) error
}

// Snapshot is an immutable view of the store.
type Snapshot struct {
	Session domain.Session
	// Resolved is false until the first refresh or invalidation settles.
	Resolved bool
	// Version increases every time the session is replaced.
	Version uint64
}

// Store caches the current session.
type Store struct {
	auth   Authenticator
	creds  CredentialClearer
	logger zerolog.Logger
	group  singleflight.Group

	mu             sync.Mutex
	current        domain.Session
	resolved       bool
	version        uint64
	refreshing     int
	deferredNotify bool
	subs           map[int]func(Snapshot)
	nextSub        int
}

// NewStore creates an unresolved Store. creds may be nil.
func NewStore(auth Authenticator, creds CredentialClearer, logger zerolog.Logger) *Store {
	return &Store{
		auth:   auth,
		creds:  creds,
		logger: logger.With().Str("component", "session").Logger(),
		subs:   map[int]func(Snapshot){},
	}
}

// Current returns the latest snapshot.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Session: s.current, Resolved: s.resolved, Version: s.version}
}

// Subscribe registers fn to be called after every settled change. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Refresh fetches the identity from the backend. Concurrent callers share a
// single in-flight fetch and all observe its outcome; a caller giving up on
// its ctx only stops its own wait. Any failure other than cancellation
// leaves the store Unauthenticated; failures are not retried.
func (s *Store) Refresh(ctx context.Context) (domain.Session, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		ctx, cancel := context.WithTimeout(fetchCtx, refreshTimeout)
		defer cancel()
		return s.refresh(ctx)
	})
	select {
	case res := <-ch:
		sess, _ := res.Val.(domain.Session)
		return sess, res.Err
	case <-ctx.Done():
		return domain.Unauthenticated, &gateway.Error{Kind: gateway.KindCancelled, Op: "session refresh", Err: ctx.Err()}
	}
}

func (s *Store) refresh(ctx context.Context) (domain.Session, error) {
	s.mu.Lock()
	startVersion := s.version
	s.refreshing++
	s.mu.Unlock()

	sess, err := s.auth.Me(ctx)

	s.mu.Lock()
	s.refreshing--

	// The session was replaced while the fetch ran (logout, a 401 elsewhere).
	// The response predates that and must not bring the old identity back.
	if s.version != startVersion {
		snap := s.snapshotLocked()
		notify := s.deferredNotify && s.refreshing == 0
		if notify {
			s.deferredNotify = false
		}
		s.mu.Unlock()
		if notify {
			s.notify(snap)
		}
		if err == nil && !snap.Session.Authenticated() {
			err = &gateway.Error{Kind: gateway.KindUnauthorized, Op: "session refresh", Message: "session ended during refresh"}
		}
		s.logger.Debug().Err(err).Uint64("version", snap.Version).Msg("session refresh superseded")
		return snap.Session, err
	}

	if err != nil && gateway.KindOf(err) == gateway.KindCancelled {
		// A cancelled fetch says nothing about the session; keep what we have.
		notify := s.deferredNotify && s.refreshing == 0
		if notify {
			s.deferredNotify = false
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if notify {
			s.notify(snap)
		}
		return snap.Session, err
	}

	if err != nil {
		sess = domain.Unauthenticated
	}
	s.current = sess
	s.resolved = true
	s.version++
	s.deferredNotify = false
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug().Err(err).Uint64("version", snap.Version).Msg("session refresh failed")
	} else {
		s.logger.Debug().Str("user_id", sess.UserID).Str("role", string(sess.Role)).Uint64("version", snap.Version).Msg("session refreshed")
	}
	s.notify(snap)
	return sess, err
}

// Invalidate forces the store to Unauthenticated without a network call.
// When a refresh is in flight, subscribers hear about it once that refresh
// settles, and its response is discarded. Later callers of Refresh start a
// new fetch instead of joining the stale one.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.current = domain.Unauthenticated
	s.resolved = true
	s.version++
	if s.refreshing > 0 {
		s.deferredNotify = true
		s.group.Forget(refreshKey)
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug().Uint64("version", snap.Version).Msg("session invalidated")
	s.notify(snap)
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Login posts credentials and, on success, refreshes the session so the
// stored identity is the one the server verified.
func (s *Store) Login(ctx context.Context, email, password string) (domain.Session, error) {
	if err := s.auth.Login(ctx, email, password); err != nil {
		return domain.Unauthenticated, fmt.Errorf("logging in: %w", err)
	}
	sess, err := s.Refresh(ctx)
	if err != nil {
		return domain.Unauthenticated, fmt.Errorf("loading session after login: %w", err)
	}
	return sess, nil
}

// Logout ends the server session, drops the local credential and invalidates
// the store. The store is invalidated even when the backend call fails.
func (s *Store) Logout(ctx context.Context) error {
	var errs []error
	if err := s.auth.Logout(ctx); err != nil && !errors.Is(err, gateway.ErrUnauthorized) {
		errs = append(errs, fmt.Errorf("logging out: %w", err))
	}
	if s.creds != nil {
		if err := s.creds.ClearCredentials(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.Invalidate()
	return errors.Join(errs...)
}
