package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// sessionCookieName is the cookie the marketplace authenticates with.
const sessionCookieName = ".ROBLOSECURITY"

// AuthContext supplies the session and CSRF tokens every marketplace call
// carries. Refresh is invoked when the remote side signals the session
// token is likely invalid (a bare 403).
type AuthContext interface {
	SessionToken() string
	CSRFToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// CookieAuth implements AuthContext on top of a marketplace session
// cookie. The CSRF token comes from the challenge dance: a POST to the
// auth endpoint is rejected with 403 but carries a fresh token in the
// x-csrf-token response header. The token is cached until Refresh.
type CookieAuth struct {
	Cookie  string
	AuthURL string
	Client  *http.Client

	mu    sync.Mutex
	token string
}

// NewCookieAuth builds an AuthContext for one destination's cookie.
func NewCookieAuth(cookie, authURL string) *CookieAuth {
	return &CookieAuth{
		Cookie:  cookie,
		AuthURL: authURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *CookieAuth) SessionToken() string { return a.Cookie }

func (a *CookieAuth) CSRFToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" {
		return a.token, nil
	}
	token, err := a.challenge(ctx)
	if err != nil {
		return "", err
	}
	a.token = token
	return token, nil
}

// Refresh drops the cached token and performs the challenge again.
func (a *CookieAuth) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	token, err := a.challenge(ctx)
	if err != nil {
		return err
	}
	a.token = token
	return nil
}

func (a *CookieAuth) challenge(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.AuthURL+"/v2/logout", nil)
	if err != nil {
		return "", fmt.Errorf("create csrf challenge request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: a.Cookie})

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: csrf challenge: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	token := resp.Header.Get("x-csrf-token")
	if token == "" {
		return "", fmt.Errorf("csrf challenge returned no token (status %d)", resp.StatusCode)
	}
	return token, nil
}
