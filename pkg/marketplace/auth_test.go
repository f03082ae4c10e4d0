package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieAuthChallenge(t *testing.T) {
	var gotCookie string
	challenges := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/logout", r.URL.Path)
		if c, err := r.Cookie(sessionCookieName); err == nil {
			gotCookie = c.Value
		}
		challenges++
		w.Header().Set("x-csrf-token", fmt.Sprintf("token-%d", challenges))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	auth := NewCookieAuth("session-cookie", server.URL)

	token, err := auth.CSRFToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, "session-cookie", gotCookie)

	// Cached until refresh.
	token, err = auth.CSRFToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, 1, challenges)

	require.NoError(t, auth.Refresh(context.Background()))
	token, err = auth.CSRFToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestCookieAuthChallengeNoToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	auth := NewCookieAuth("session-cookie", server.URL)
	_, err := auth.CSRFToken(context.Background())
	assert.Error(t, err)
}
