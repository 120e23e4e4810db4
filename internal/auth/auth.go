// Package auth logs an engine session in and out. Two providers exist:
// credential login against the admin auth endpoint, and bearer tokens.
package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Session is the part of an engine gateway a provider needs.
type Session interface {
	Name() string
	AdminPost(ctx context.Context, apiPath string, form url.Values) error
	SetHeader(key, value string)
}

// Provider authenticates a Session. Logout must be called exactly once for
// every successful Login.
type Provider interface {
	Name() string
	Login(ctx context.Context, s Session) error
	Logout(ctx context.Context, s Session) error
}

// Kind names an auth variant as written in the environment config.
type Kind string

const (
	KindBasic Kind = "basic"
	KindOAuth Kind = "oauth"
	KindToken Kind = "token"
)

// ParseKind normalises a config value. Empty means basic.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic", "cockpit":
		return KindBasic, nil
	case "oauth", "bearer":
		return KindOAuth, nil
	case "token":
		return KindToken, nil
	default:
		return "", fmt.Errorf("unknown auth kind %q (valid: basic, oauth, token)", s)
	}
}

// IsToken reports whether the kind authenticates with a bearer token.
func (k Kind) IsToken() bool {
	return k == KindOAuth || k == KindToken
}

// Credentials carries whatever the operator supplied.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// New builds the provider for kind. It is called once at startup.
func New(kind Kind, creds Credentials, loginMaxElapsed time.Duration) (Provider, error) {
	if kind.IsToken() {
		if creds.Token == "" {
			return nil, fmt.Errorf("token auth requires a token")
		}
		return &TokenAuth{Token: creds.Token}, nil
	}
	if creds.Username == "" {
		return nil, fmt.Errorf("basic auth requires a username")
	}
	return &BasicAuth{
		Username:        creds.Username,
		Password:        creds.Password,
		LoginMaxElapsed: loginMaxElapsed,
	}, nil
}

// DefaultLoginMaxElapsed bounds how long BasicAuth retries a login that
// fails below the HTTP layer.
const DefaultLoginMaxElapsed = 10 * time.Second

// BasicAuth posts username and password to the cockpit login endpoint.
type BasicAuth struct {
	Username        string
	Password        string
	LoginMaxElapsed time.Duration
}

func (a *BasicAuth) Name() string { return string(KindBasic) }

// Login establishes a server-side session. HTTP errors (wrong password,
// unknown engine) fail immediately; connection errors are retried with
// exponential backoff until LoginMaxElapsed.
func (a *BasicAuth) Login(ctx context.Context, s Session) error {
	form := url.Values{}
	form.Set("username", a.Username)
	form.Set("password", a.Password)

	bo := newLoginBackoff(a.LoginMaxElapsed)
	err := backoff.Retry(func() error {
		err := s.AdminPost(ctx, "/login/cockpit", form)
		if err != nil && isRetryableLoginError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return fmt.Errorf("login to engine %s as %s: %w", s.Name(), a.Username, err)
	}
	return nil
}

// Logout terminates the server-side session.
func (a *BasicAuth) Logout(ctx context.Context, s Session) error {
	if err := s.AdminPost(ctx, "/logout", nil); err != nil {
		return fmt.Errorf("logout from engine %s: %w", s.Name(), err)
	}
	return nil
}

// TokenAuth attaches a bearer token to every request of the session.
type TokenAuth struct {
	Token string
}

func (a *TokenAuth) Name() string { return string(KindOAuth) }

// Login sets the Authorization header; there is no round trip.
func (a *TokenAuth) Login(_ context.Context, s Session) error {
	s.SetHeader("Authorization", "Bearer "+a.Token)
	return nil
}

// Logout is a no-op: there is no server-side session to end.
func (a *TokenAuth) Logout(context.Context, Session) error {
	return nil
}
