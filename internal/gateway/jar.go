package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// CookieStore persists cookies per origin (scheme://host) between runs.
type CookieStore interface {
	LoadCookies(ctx context.Context) (map[string][]*http.Cookie, error)
	SaveCookie(ctx context.Context, origin string, c *http.Cookie) error
	DeleteCookie(ctx context.Context, origin, name, path string) error
	ClearCookies(ctx context.Context) error
}

// Jar is a public-suffix aware cookie jar that mirrors every change into an
// optional CookieStore, so the session credential survives process restarts.
type Jar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	store  CookieStore
	logger zerolog.Logger
}

// NewJar creates a Jar. With a nil store the jar is memory-only.
func NewJar(store CookieStore, logger *zerolog.Logger) (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	j := &Jar{jar: inner, store: store, logger: zerolog.Nop()}
	if logger != nil {
		j.logger = logger.With().Str("component", "cookie_jar").Logger()
	}
	return j, nil
}

// Load replays persisted, unexpired cookies into the jar.
func (j *Jar) Load(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	byOrigin, err := j.store.LoadCookies(ctx)
	if err != nil {
		return fmt.Errorf("loading cookies: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for origin, cookies := range byOrigin {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		live := cookies[:0]
		for _, c := range cookies {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			live = append(live, c)
		}
		j.jar.SetCookies(u, live)
	}
	return nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)

	if j.store == nil {
		return
	}
	ctx := context.Background()
	origin := originOf(u)
	now := time.Now()
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			if err := j.store.DeleteCookie(ctx, origin, c.Name, path); err != nil {
				j.logger.Warn().Err(err).Str("cookie", c.Name).Msg("deleting persisted cookie")
			}
			continue
		}
		stored := *c
		stored.Path = path
		if c.MaxAge > 0 {
			stored.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
			stored.MaxAge = 0
		}
		if err := j.store.SaveCookie(ctx, origin, &stored); err != nil {
			j.logger.Warn().Err(err).Str("cookie", c.Name).Msg("persisting cookie")
		}
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie, in memory and in the store.
func (j *Jar) Clear(ctx context.Context) error {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("resetting cookie jar: %w", err)
	}
	j.mu.Lock()
	j.jar = inner
	j.mu.Unlock()

	if j.store == nil {
		return nil
	}
	if err := j.store.ClearCookies(ctx); err != nil {
		return fmt.Errorf("clearing persisted cookies: %w", err)
	}
	return nil
}

func originOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
