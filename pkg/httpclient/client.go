package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type leveledLogrus struct {
	entry *logrus.Entry
}

// Intermediate failures are retried, so they are logged as warnings.
func (l leveledLogrus) Error(msg string, keysAndValues ...any) {
	l.entry.WithFields(fields(keysAndValues)).Warn(msg)
}

func (l leveledLogrus) Warn(msg string, keysAndValues ...any) {
	l.entry.WithFields(fields(keysAndValues)).Warn(msg)
}

func (l leveledLogrus) Info(msg string, keysAndValues ...any) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l leveledLogrus) Debug(msg string, keysAndValues ...any) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func fields(keysAndValues []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		k, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		f[k] = keysAndValues[i+1]
	}
	return f
}

type Option func(*retryablehttp.Client)

func WithMaxRetries(n int) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = n
	}
}

func WithRetryWait(min, max time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = min
		c.RetryWaitMax = max
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.HTTPClient.Timeout = d
	}
}

// WithProxy routes requests through proxyURL. An empty or malformed URL is
// ignored.
func WithProxy(proxyURL string) Option {
	return func(c *retryablehttp.Client) {
		if proxyURL == "" {
			return
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			logrus.Warnf("ignoring invalid proxy url %q: %v", proxyURL, err)
			return
		}
		if t, ok := c.HTTPClient.Transport.(*http.Transport); ok {
			t = t.Clone()
			t.Proxy = http.ProxyURL(u)
			c.HTTPClient.Transport = t
		}
	}
}

// WithRetryPolicy replaces the default idempotent-only policy.
func WithRetryPolicy(policy retryablehttp.CheckRetry) Option {
	return func(c *retryablehttp.Client) {
		c.CheckRetry = policy
	}
}

// New returns a standard *http.Client backed by retryablehttp. By default
// only GET and HEAD requests are retried, and 429 is never retried so the
// caller decides how to cool down.
func New(subsystem string, options ...Option) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = retryablehttp.LeveledLogger(leveledLogrus{entry: logrus.WithField("subsystem", subsystem)})
	rc.CheckRetry = IdempotentRetryPolicy

	for _, opt := range options {
		opt(rc)
	}
	std := rc.StandardClient()
	std.Transport = methodTagger{next: std.Transport}
	return std
}

type methodKey struct{}

// methodTagger stores the request method in the request context. CheckRetry
// only sees the context when the transport failed without a response.
type methodTagger struct {
	next http.RoundTripper
}

func (t methodTagger) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := context.WithValue(req.Context(), methodKey{}, req.Method)
	return t.next.RoundTrip(req.WithContext(ctx))
}

func requestMethod(ctx context.Context, resp *http.Response) string {
	if m, ok := ctx.Value(methodKey{}).(string); ok {
		return m
	}
	if resp != nil && resp.Request != nil {
		return resp.Request.Method
	}
	return ""
}

// IdempotentRetryPolicy retries GET and HEAD only, on server errors and on
// transport errors alike. A POST that lost its connection may already have
// been applied, so it is never resent.
func IdempotentRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	switch requestMethod(ctx, resp) {
	case http.MethodGet, http.MethodHead:
	default:
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return NoRateLimitRetryPolicy(ctx, resp, err)
}

// NoRateLimitRetryPolicy retries everything retryablehttp would, except 429.
// Model inference endpoints use it since their POSTs are side-effect free.
func NoRateLimitRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
