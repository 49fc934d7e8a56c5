// Package upstream is the REST client for the post, my-day, comment and bookmark services
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dayonme/internal/platform/config"
	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
	pnet "dayonme/internal/platform/net"
)

const (
	defaultBaseURL   = "http://localhost:3001/api"
	defaultTimeout   = 10 * time.Second
	defaultUA        = "dayonme-feedd"
	defaultMaxRetry  = 2
	defaultRetryBase = 300 * time.Millisecond
	defaultBMPage    = 100
	defaultBMPages   = 20
	maxBody          = 4 << 20
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds each attempt; it never extends a shorter caller deadline
	Timeout time.Duration

	// Retries apply to GETs only; writes are never replayed
	MaxRetries int
	RetryBase  time.Duration

	// BookmarkPageSize and BookmarkMaxPages bound how the bookmark list is paged through
	BookmarkPageSize int
	BookmarkMaxPages int
}

// FromConfig reads UPSTREAM_* settings
func FromConfig(c config.Conf) Options {
	uc := c.Prefix("UPSTREAM_")
	return Options{
		BaseURL:    uc.MayURL("BASE_URL", defaultBaseURL).String(),
		UserAgent:  uc.MayString("USER_AGENT", defaultUA),
		Timeout:    uc.MayDuration("TIMEOUT", defaultTimeout),
		MaxRetries: uc.MayIntIn("MAX_RETRIES", defaultMaxRetry, 0, 10),
		RetryBase:  uc.MayDuration("RETRY_BASE", defaultRetryBase),

		BookmarkPageSize: uc.MayIntIn("BOOKMARK_PAGE_SIZE", defaultBMPage, 1, 500),
		BookmarkMaxPages: uc.MayIntIn("BOOKMARK_MAX_PAGES", defaultBMPages, 1, 1000),
	}
}

// Client talks JSON to the app backend with the caller's bearer token
type Client struct {
	http  *http.Client
	opts  Options
	log   *logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.BookmarkPageSize <= 0 {
		o.BookmarkPageSize = defaultBMPage
	}
	if o.BookmarkMaxPages <= 0 {
		o.BookmarkMaxPages = defaultBMPages
	}
	return &Client{
		http:  &http.Client{},
		opts:  o,
		log:   logger.Named("upstream"),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do issues one logical call and returns the response body of a 2xx answer
// Non-2xx answers map through perr.FromStatus, transport failures through perr.FromTransport
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "upstream encode %s %s", method, path)
		}
		payload = b
	}
	target := c.opts.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.opts.MaxRetries
	}
	for attempt := 0; ; attempt++ {
		out, err := c.once(ctx, method, path, target, payload, attempt)
		if err == nil {
			return out, nil
		}
		if attempt >= retries || ctx.Err() != nil || !retryable(err) {
			return nil, perr.WithOp(err, method+" "+path)
		}
		back := c.backoff(attempt)
		logger.C(ctx).Warn().Str("component", "upstream").Str("path", path).Int("attempt", attempt).
			Dur("retry_in", back).Err(err).Msg("upstream call failed; retrying")
		if err := c.sleep(ctx, back); err != nil {
			return nil, perr.FromTransport(err, "upstream "+method+" "+path)
		}
	}
}

func (c *Client) once(ctx context.Context, method, path, target string, payload []byte, attempt int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "upstream new request %s", path)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := pnet.Token(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if id := pnet.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	lat := c.now().Sub(start)
	if err != nil {
		return nil, perr.FromTransport(err, "upstream "+method+" "+path)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug().Err(cerr).Str("path", path).Msg("upstream close body failed")
		}
	}()

	b, rerr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("attempt", attempt).
		Dur("latency", lat).
		Int("bytes", len(b)).
		Msg("upstream http response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, perr.FromStatus(resp.StatusCode, "%s", statusMessage(resp.StatusCode, b))
	}
	if rerr != nil {
		return nil, perr.FromTransport(rerr, "upstream read "+path)
	}
	return b, nil
}

// statusMessage prefers the server's own message so auth failures can be shown verbatim
func statusMessage(status int, body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &m) == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	if status >= 500 || status == http.StatusRequestTimeout {
		return "server unavailable, try again later"
	}
	return http.StatusText(status)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	// a per-attempt timeout is worth another try while the caller still has time
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return perr.Retryable(err)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if limit := 5 * time.Second; d > limit || d <= 0 {
		return limit
	}
	return d
}
