// Package api is the typed REST client for the brotherhood API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hermandad.org/internal/ids"
	"hermandad.org/internal/obs"
)

const (
	DefaultBaseURL = "https://santamarta-back.onrender.com/santaMarta/api/v1/"
	DefaultTimeout = 3 * time.Second

	maxErrorBody = 64 << 10
)

// TokenSource returns the bearer token for the caller in ctx, or "" when
// there is no persisted session.
type TokenSource func(ctx context.Context) string

// Client talks to the brotherhood API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token TokenSource
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (its Timeout is kept).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// New creates a client for baseURL; an empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported base url scheme %q", u.Scheme)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string { return c.base.String() }

// call describes one request. endpoint is the route template used as the
// metrics label, path the concrete relative path.
type call struct {
	method   string
	endpoint string
	path     string
	query    url.Values
	body     any
	accept   string
}

func newCall(method, endpoint string, args ...string) call {
	return call{method: method, endpoint: endpoint, path: expand(endpoint, args...)}
}

// expand substitutes ":param" segments of tmpl with args, in order.
func expand(tmpl string, args ...string) string {
	if len(args) == 0 {
		return tmpl
	}
	parts := strings.Split(tmpl, "/")
	i := 0
	for j, p := range parts {
		if strings.HasPrefix(p, ":") && i < len(args) {
			parts[j] = url.PathEscape(args[i])
			i++
		}
	}
	return strings.Join(parts, "/")
}

func (c *Client) send(ctx context.Context, cl call) (*http.Response, error) {
	rel, err := url.Parse(cl.path)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Method: cl.method, Endpoint: cl.endpoint, Cause: err}
	}
	if len(cl.query) > 0 {
		rel.RawQuery = cl.query.Encode()
	}
	target := c.base.ResolveReference(rel)

	var body io.Reader
	if cl.body != nil {
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Method: cl.method, Endpoint: cl.endpoint, Cause: err}
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target.String(), body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: cl.method, Endpoint: cl.endpoint, Cause: err}
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	accept := cl.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-Request-ID", requestID(ctx))
	if c.token != nil {
		if tok := c.token(ctx); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		obs.ObserveAPICall(cl.method, cl.endpoint, string(KindTransport), time.Since(start))
		obs.Warn("api call failed", map[string]any{
			"method":   cl.method,
			"endpoint": cl.endpoint,
			"error":    err.Error(),
		})
		return nil, &Error{Kind: KindTransport, Method: cl.method, Endpoint: cl.endpoint, Cause: err}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := kindForStatus(resp.StatusCode)
		obs.ObserveAPICall(cl.method, cl.endpoint, string(kind), time.Since(start))
		apiErr := &Error{
			Kind:     kind,
			Method:   cl.method,
			Endpoint: cl.endpoint,
			Status:   resp.StatusCode,
			Message:  serverMessage(raw),
		}
		obs.Warn("api call rejected", map[string]any{
			"method":   cl.method,
			"endpoint": cl.endpoint,
			"status":   resp.StatusCode,
			"error":    apiErr.Message,
		})
		return nil, apiErr
	}
	obs.ObserveAPICall(cl.method, cl.endpoint, "ok", time.Since(start))
	return resp, nil
}

// do sends cl and decodes a JSON body into out (skipped when out is nil).
func (c *Client) do(ctx context.Context, cl call, out any) error {
	resp, err := c.send(ctx, cl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &Error{Kind: KindDecode, Method: cl.method, Endpoint: cl.endpoint, Status: resp.StatusCode, Cause: err}
	}
	return nil
}

func requestID(ctx context.Context) string {
	if id := obs.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return ids.RequestID()
}
