// Package api is the REST client of the hotelauth server.
//
// Every request goes through an Interceptor, which adds the bearer token and
// ends the local session when a protected endpoint answers 401. Ceremony
// start calls and reads are retried with exponential backoff on network
// failures and 5xx gateway errors; finish calls and other writes are sent
// exactly once.
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
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/hotelauth/internal/client/authstate"
	"github.com/dmitrijs2005/hotelauth/internal/client/models"
	"github.com/dmitrijs2005/hotelauth/internal/common"
	"github.com/dmitrijs2005/hotelauth/internal/logging"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxTries = 3
	// refreshSkew renews the access token this long before it expires.
	refreshSkew = 30 * time.Second
	maxBodySize = 1 << 20
)

type Client struct {
	base     *url.URL
	http     *http.Client
	state    *authstate.Store
	log      logging.Logger
	maxTries uint
	backoff  func() backoff.BackOff
	now      func() time.Time

	refreshMu sync.Mutex
}

type Option func(*Client)

// WithTransport sets the transport under the interceptor.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = NewInterceptor(rt, c.state) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetry sets how many attempts a retryable call gets and the backoff
// between them.
func WithRetry(maxTries uint, b func() backoff.BackOff) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		c.backoff = b
	}
}

func New(baseURL string, state *authstate.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:     u,
		state:    state,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      logging.Nop(),
		maxTries: defaultMaxTries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		now: time.Now,
	}
	c.http.Transport = NewInterceptor(nil, state)
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// State is the auth state this client reads tokens from.
func (c *Client) State() *authstate.Store {
	return c.state
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	// retry marks calls that are safe to repeat.
	retry bool
	// public calls do not need a fresh access token.
	public bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	if !cl.public {
		c.refreshIfExpiring(ctx)
	}

	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	endpoint := c.base.JoinPath(cl.path)
	endpoint.RawQuery = cl.query.Encode()

	op := func() (struct{}, error) {
		return struct{}{}, c.attempt(ctx, cl, endpoint.String(), payload)
	}

	tries := uint(1)
	if cl.retry {
		tries = c.maxTries
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn(ctx, "request failed, retrying", "path", cl.path, "error", err, "retry_in", next)
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return err
}

func (c *Client) attempt(ctx context.Context, cl call, endpoint string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		return fmt.Errorf("%w: %v", common.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", common.ErrNetworkFailure, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseError(resp.StatusCode, data)
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return apiErr
		case http.StatusTooManyRequests:
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				return errors.Join(apiErr, backoff.RetryAfter(secs))
			}
		}
		return backoff.Permanent(apiErr)
	}

	if cl.out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, cl.out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// refreshIfExpiring renews a session whose access token is about to
// expire. A failed refresh is left to the protected call itself, whose 401
// ends the session.
func (c *Client) refreshIfExpiring(ctx context.Context) {
	sess, ok := c.state.Session()
	if !ok || sess.RefreshToken == "" || !sess.ExpiresWithin(c.now(), refreshSkew) {
		return
	}
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn(ctx, "token refresh failed", "error", err)
	}
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, call{method: http.MethodGet, path: "/health", public: true})
}

// Get fetches any protected resource of the API into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, call{method: http.MethodGet, path: path, out: out, retry: true})
}

// sessionFromAuth converts a login or refresh response.
func sessionFromAuth(r *authResponse) *models.Session {
	return &models.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		User:         r.User,
		Roles:        r.Roles,
		Permissions:  r.Permissions,
		IsFirstLogin: r.IsFirstLogin,
	}
}
