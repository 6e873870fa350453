package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ gateway.CookieStore = (*SQLiteCookieRepo)(nil)

const origin = "http://127.0.0.1:8000"

func TestCookieRepo_SaveAndLoad(t *testing.T) {
	repo := NewSQLiteCookieRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.SaveCookie(ctx, origin, &http.Cookie{
		Name: "studygen_session", Value: "tok-1", Path: "/", HttpOnly: true,
		SameSite: http.SameSiteLaxMode, Expires: expires,
	}))
	require.NoError(t, repo.SaveCookie(ctx, origin, &http.Cookie{Name: "pref", Value: "dark"}))

	got, err := repo.LoadCookies(ctx)
	require.NoError(t, err)
	require.Len(t, got[origin], 2)

	pref, session := got[origin][0], got[origin][1]
	assert.Equal(t, "pref", pref.Name)
	assert.Equal(t, "/", pref.Path)
	assert.True(t, pref.Expires.IsZero())

	assert.Equal(t, "tok-1", session.Value)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
	assert.True(t, expires.Equal(session.Expires))
}

func TestCookieRepo_SaveReplacesValue(t *testing.T) {
	repo := NewSQLiteCookieRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveCookie(ctx, origin, &http.Cookie{Name: "studygen_session", Value: "old", Path: "/"}))
	require.NoError(t, repo.SaveCookie(ctx, origin, &http.Cookie{Name: "studygen_session", Value: "new", Path: "/"}))

	got, err := repo.LoadCookies(ctx)
	require.NoError(t, err)
	require.Len(t, got[origin], 1)
	assert.Equal(t, "new", got[origin][0].Value)
}

func TestCookieRepo_SkipsExpired(t *testing.T) {
	repo := NewSQLiteCookieRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveCookie(ctx, origin, &http.Cookie{Name: "old", Value: "x", Expires: time.Now().Add(-time.Hour)}))

	got, err := repo.LoadCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCookieRepo_DeleteAndClear(t *testing.T) {
	repo := NewSQLiteCookieRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveCookie(ctx, origin, &http.Cookie{Name: "a", Value: "1"}))
	require.NoError(t, repo.SaveCookie(ctx, origin, &http.Cookie{Name: "b", Value: "2"}))
	require.NoError(t, repo.SaveCookie(ctx, "https://other.example.com", &http.Cookie{Name: "c", Value: "3"}))

	require.NoError(t, repo.DeleteCookie(ctx, origin, "a", ""))
	got, err := repo.LoadCookies(ctx)
	require.NoError(t, err)
	require.Len(t, got[origin], 1)
	assert.Equal(t, "b", got[origin][0].Name)
	assert.Len(t, got, 2)

	require.NoError(t, repo.ClearCookies(ctx))
	got, err = repo.LoadCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// A session cookie set by the backend survives into a fresh jar backed by
// the same database.
func TestCookieRepo_BacksGatewayJar(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	logger := zerolog.Nop()
	first, err := gateway.NewJar(NewSQLiteCookieRepo(database), &logger)
	require.NoError(t, err)
	first.SetCookies(u, []*http.Cookie{{Name: "studygen_session", Value: "tok-9", Path: "/"}})

	second, err := gateway.NewJar(NewSQLiteCookieRepo(database), &logger)
	require.NoError(t, err)
	require.NoError(t, second.Load(ctx))

	cookies := second.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok-9", cookies[0].Value)

	require.NoError(t, second.Clear(ctx))
	stored, err := NewSQLiteCookieRepo(database).LoadCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
