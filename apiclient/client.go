package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultRefreshPath = "/auth/refresh"
	DefaultLogoutPath  = "/auth/logout"

	maxResponseBytes = 1 << 20
)

// DefaultNoRefreshPaths are the credential exchanges, where a 401 means bad credentials
var DefaultNoRefreshPaths = []string{"/auth/login", "/auth/register", "/auth/oauth/"}

// TokenStore is the part of tokenstore.Store the client reads and rotates
type TokenStore interface {
	Tokens(ctx context.Context) *tokenstore.Pair
	SetTokens(ctx context.Context, pair *tokenstore.Pair) error
}

// Client is the single chokepoint for backend calls of one session context. It attaches the
// bearer token, and on a 401 performs one shared refresh and replays the request once.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       TokenStore
	refreshPath string
	logoutPath  string
	noRefresh   []string
	onExpired   func(ctx context.Context)
	metrics     *metrics.Metrics

	refreshGroup singleflight.Group
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (its Timeout is kept as given)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

func WithLogoutPath(path string) Option {
	return func(c *Client) {
		c.logoutPath = path
	}
}

// WithNoRefreshPaths replaces the paths whose 401 is returned as is. A path ending in "/"
// matches as a prefix. The refresh and logout paths are always excluded.
func WithNoRefreshPaths(paths ...string) Option {
	return func(c *Client) {
		c.noRefresh = paths
	}
}

// WithSessionExpiredHook registers the function called after a failed refresh has cleared
// the token store. The session manager uses it to drop the user.
func WithSessionExpiredHook(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onExpired = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, store TokenStore, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[apiclient New] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[apiclient New] token store is required")
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		store:       store,
		refreshPath: DefaultRefreshPath,
		logoutPath:  DefaultLogoutPath,
		noRefresh:   DefaultNoRefreshPaths,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// SetSessionExpiredHook replaces the hook after construction, for owners that are built
// after their client.
func (c *Client) SetSessionExpiredHook(fn func(ctx context.Context)) {
	c.onExpired = fn
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// Do sends in as JSON (when not nil) and decodes a 2xx body into out (when not nil).
// Every failure is returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	req := &request{method: method, path: path}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return &APIError{Message: "could not encode request", Kind: ErrRequest, Cause: err}
		}
		req.body = body
	}
	return c.dispatch(ctx, req, out)
}

// request keeps the body so the call can be replayed after a refresh
type request struct {
	method  string
	path    string
	body    []byte
	retried bool
}

func (c *Client) dispatch(ctx context.Context, req *request, out any) error {
	var access string
	if tokens := c.store.Tokens(ctx); tokens != nil {
		access = tokens.AccessToken
	}

	status, body, err := c.send(ctx, req, access)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusUnauthorized:
		return c.handleUnauthorized(ctx, req, access, body, out)
	case status < 200 || status >= 300:
		return newAPIError(status, body)
	}
	return decode(status, body, out)
}

func (c *Client) handleUnauthorized(ctx context.Context, req *request, usedAccess string, body []byte, out any) error {
	original := newAPIError(http.StatusUnauthorized, body)
	if req.retried || c.skipsRefresh(req.path) {
		return original
	}
	tokens := c.store.Tokens(ctx)
	if tokens == nil || tokens.RefreshToken == "" {
		return original
	}

	if err := c.refresh(ctx, usedAccess); err != nil {
		original.Cause = ErrSessionExpired
		return original
	}

	req.retried = true
	return c.dispatch(ctx, req, out)
}

func (c *Client) send(ctx context.Context, req *request, access string) (int, []byte, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return 0, nil, &APIError{Message: "could not build request", Kind: ErrRequest, Cause: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		httpReq.Header.Set("Authorization", "Bearer "+access)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug().Str("method", req.method).Str("path", req.path).Err(err).Msg("backend request failed")
		return 0, nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, transportError(err)
	}
	log.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Bool("replay", req.retried).
		Msg("backend request")
	return resp.StatusCode, data, nil
}

func (c *Client) skipsRefresh(path string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, p := range append([]string{c.refreshPath, c.logoutPath}, c.noRefresh...) {
		if strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return true
		}
		if strings.TrimRight(path, "/") == strings.TrimRight(p, "/") {
			return true
		}
	}
	return false
}

func decode(status int, body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{
			Status:  status,
			Message: "unexpected response from server",
			Kind:    ErrServer,
			Cause:   fmt.Errorf("%w: %w", ErrMalformedResponse, err),
		}
	}
	return nil
}

func transportError(err error) *APIError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &APIError{Message: "The server took too long to respond. Please try again.", Kind: ErrTimeout, Cause: err}
	}
	return &APIError{Message: "Unable to reach the server. Check your connection and try again.", Kind: ErrNetwork, Cause: err}
}
