package gateway

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCookieStore struct {
	mu      sync.Mutex
	cookies map[string]map[string]*http.Cookie
}

func newMemCookieStore() *memCookieStore {
	return &memCookieStore{cookies: map[string]map[string]*http.Cookie{}}
}

func (s *memCookieStore) LoadCookies(context.Context) (map[string][]*http.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]*http.Cookie{}
	for origin, byName := range s.cookies {
		for _, c := range byName {
			cp := *c
			out[origin] = append(out[origin], &cp)
		}
	}
	return out, nil
}

func (s *memCookieStore) SaveCookie(_ context.Context, origin string, c *http.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cookies[origin] == nil {
		s.cookies[origin] = map[string]*http.Cookie{}
	}
	cp := *c
	s.cookies[origin][c.Name+c.Path] = &cp
	return nil
}

func (s *memCookieStore) DeleteCookie(_ context.Context, origin, name, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cookies[origin], name+path)
	return nil
}

func (s *memCookieStore) ClearCookies(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = map[string]map[string]*http.Cookie{}
	return nil
}

func TestJar_PersistsAcrossInstances(t *testing.T) {
	store := newMemCookieStore()
	u, _ := url.Parse("http://api.example.com/auth/login")

	first, err := NewJar(store, nil)
	require.NoError(t, err)
	first.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", MaxAge: 3600}})

	second, err := NewJar(store, nil)
	require.NoError(t, err)
	require.NoError(t, second.Load(context.Background()))

	cookies := second.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestJar_SkipsExpiredOnLoad(t *testing.T) {
	store := newMemCookieStore()
	require.NoError(t, store.SaveCookie(context.Background(), "http://api.example.com",
		&http.Cookie{Name: "session", Value: "old", Path: "/", Expires: time.Now().Add(-time.Hour)}))

	jar, err := NewJar(store, nil)
	require.NoError(t, err)
	require.NoError(t, jar.Load(context.Background()))

	u, _ := url.Parse("http://api.example.com/")
	assert.Empty(t, jar.Cookies(u))
}

func TestJar_DeletionCookieRemovesPersisted(t *testing.T) {
	store := newMemCookieStore()
	u, _ := url.Parse("http://api.example.com/auth/logout")
	jar, err := NewJar(store, nil)
	require.NoError(t, err)

	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "", Path: "/", MaxAge: -1}})

	loaded, err := store.LoadCookies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded["http://api.example.com"])
	assert.Empty(t, jar.Cookies(u))
}

func TestJar_Clear(t *testing.T) {
	store := newMemCookieStore()
	u, _ := url.Parse("http://api.example.com/")
	jar, err := NewJar(store, nil)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc"}})

	require.NoError(t, jar.Clear(context.Background()))

	assert.Empty(t, jar.Cookies(u))
	loaded, _ := store.LoadCookies(context.Background())
	assert.Empty(t, loaded)
}
