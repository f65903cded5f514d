package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	contentTypeJSON = "application/json"
	maxBodyBytes    = 4 << 20
	requestIDHeader = "X-Request-ID"
)

// Interceptor runs before a request is sent and may mutate it (e.g. attach a bearer token).
// Returning an error aborts the request before anything reaches the network.
type Interceptor func(ctx context.Context, req *http.Request) error

// Request describes a single call against the API
type Request struct {
	Method string
	Path   string
	Body   any // JSON encoded when not nil
	Header http.Header

	// Anonymous skips the interceptor pipeline. Used by the calls that establish or
	// renew a session, which must never trigger a refresh themselves.
	Anonymous bool

	// BearerToken attaches this token directly instead of running the interceptors
	BearerToken string
}

// Doer is the part of the client the higher level services depend on
type Doer interface {
	Do(ctx context.Context, req Request, out any) error
}

var _ Doer = (*Client)(nil)

// Client performs JSON calls against a fixed base URL. Cookies are always kept,
// which is how the HttpOnly refresh credential travels without the client reading it.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	limiter      *rate.Limiter
	interceptors []Interceptor
	lock         sync.RWMutex
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.httpClient.Jar = jar
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit caps outbound requests per second. Zero or less disables the limit.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

func WithInterceptor(i Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, i)
	}
}

// New creates a client bound to baseURL
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("[apiclient New] invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[apiclient New] base URL %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("[apiclient New] cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// Use appends an interceptor. Interceptors run in the order they were added.
func (c *Client) Use(i Interceptor) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.interceptors = append(c.interceptors, i)
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do sends the request and decodes a successful JSON response into out (if not nil).
// Failures are returned as *APIError unless an interceptor aborted the call, in which
// case the interceptor's error is returned unchanged.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	req, err := c.newHTTPRequest(ctx, r)
	if err != nil {
		return err
	}

	switch {
	case r.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+r.BearerToken)
	case !r.Anonymous:
		if err := c.intercept(ctx, req); err != nil {
			return err
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("[apiclient Do] rate limiter: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", r.Method).Str("path", r.Path).Msg("Request failed without response")
		return &APIError{Method: r.Method, Path: r.Path, NoResponse: true, Err: err}
	}
	defer resp.Body.Close()

	// The server did answer, so a broken body keeps its status rather than counting as unreachable
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Debug().Err(err).Str("method", r.Method).Str("path", r.Path).Int("status", resp.StatusCode).Msg("Reading response body failed")
		return &APIError{Method: r.Method, Path: r.Path, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	log.Debug().
		Str("method", r.Method).
		Str("path", r.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("request_id", req.Header.Get(requestIDHeader)).
		Msg("API request")

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Method: r.Method, Path: r.Path, Status: resp.StatusCode}
		if len(bytes.TrimSpace(body)) > 0 {
			apiErr.Body = json.RawMessage(body)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("[apiclient Do] %s %s: %w: %v", r.Method, r.Path, ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) newHTTPRequest(ctx context.Context, r Request) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("[apiclient Do] encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(r.Path).String(), body)
	if err != nil {
		return nil, fmt.Errorf("[apiclient Do] build request: %w", err)
	}

	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set(requestIDHeader, uuid.NewString())
	return req, nil
}

func (c *Client) intercept(ctx context.Context, req *http.Request) error {
	c.lock.RLock()
	interceptors := make([]Interceptor, len(c.interceptors))
	copy(interceptors, c.interceptors)
	c.lock.RUnlock()

	for _, i := range interceptors {
		if err := i(ctx, req); err != nil {
			return err
		}
	}
	return nil
}
