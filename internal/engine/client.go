// Package engine is a thin client for one process engine's REST namespace.
package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is kept in RequestError.
	maxErrorBody = 512

	acceptHeader = "application/json, */*;q=0.9"
)

// Gateway issues requests against /engine/{name} on a single engine.
// Every Gateway owns its own cookie jar so an authenticated session never
// outlives the engine it was created for.
type Gateway struct {
	BaseURL    string
	Engine     string
	HTTPClient *http.Client

	headers http.Header
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.HTTPClient.Timeout = d
	}
}

// WithTransport replaces the HTTP transport. Used by tests and telemetry.
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gateway) {
		g.HTTPClient.Transport = rt
	}
}

// WithTLSVerify toggles TLS certificate verification. Disabling it is only
// meant for engines behind self-signed certificates.
func WithTLSVerify(verify bool) Option {
	return func(g *Gateway) {
		if verify {
			return
		}
		base, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return
		}
		tr := base.Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in via verify: false
		g.HTTPClient.Transport = tr
	}
}

// NewGateway creates a gateway for the named engine under baseURL.
func NewGateway(baseURL, engineName string, opts ...Option) (*Gateway, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("engine base URL not configured")
	}
	if engineName == "" {
		return nil, fmt.Errorf("engine name not configured")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	g := &Gateway{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Engine:  engineName,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		headers: make(http.Header),
	}
	g.headers.Set("Accept", acceptHeader)
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name returns the engine this gateway talks to.
func (g *Gateway) Name() string {
	return g.Engine
}

// SetHeader attaches a header to every subsequent request of this gateway.
func (g *Gateway) SetHeader(key, value string) {
	g.headers.Set(key, value)
}

// Header returns the current value of a session header.
func (g *Gateway) Header(key string) string {
	return g.headers.Get(key)
}

func (g *Gateway) engineURL(apiPath string, query url.Values) string {
	u := fmt.Sprintf("%s/engine/%s%s", g.BaseURL, url.PathEscape(g.Engine), apiPath)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (g *Gateway) adminURL(apiPath string) string {
	return fmt.Sprintf("%s/api/admin/auth/user/%s%s", g.BaseURL, url.PathEscape(g.Engine), apiPath)
}

// request sends one request and returns the response body. Non-2xx
// responses come back as *RequestError. There is no retry here.
func (g *Gateway) request(ctx context.Context, method, rawURL, apiPath string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range g.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %s %s: %w", g.Engine, method, apiPath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("engine %s: read response: %w", g.Engine, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(respBody)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &RequestError{
			Engine:     g.Engine,
			Method:     method,
			Path:       apiPath,
			StatusCode: resp.StatusCode,
			Body:       text,
		}
	}
	return respBody, nil
}

func (g *Gateway) getJSON(ctx context.Context, apiPath string, query url.Values, dest any) error {
	body, err := g.request(ctx, http.MethodGet, g.engineURL(apiPath, query), apiPath, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("engine %s: parse %s response: %w", g.Engine, apiPath, err)
	}
	return nil
}

func (g *Gateway) putJSON(ctx context.Context, apiPath string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	_, err = g.request(ctx, http.MethodPut, g.engineURL(apiPath, nil), apiPath, bytes.NewReader(data), "application/json")
	return err
}

func (g *Gateway) delete(ctx context.Context, apiPath string) error {
	_, err := g.request(ctx, http.MethodDelete, g.engineURL(apiPath, nil), apiPath, nil, "")
	return err
}

// AdminPost submits a form to the admin auth namespace of this engine,
// e.g. "/login/cockpit" or "/logout".
func (g *Gateway) AdminPost(ctx context.Context, apiPath string, form url.Values) error {
	if form == nil {
		form = url.Values{}
	}
	_, err := g.request(ctx, http.MethodPost, g.adminURL(apiPath), apiPath,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	return err
}
