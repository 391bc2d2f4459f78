package reddit

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/lazyninja/reddit-influencer/pkg/httpclient"
)

const (
	DefaultAuthURL = "https://www.reddit.com"
	DefaultAPIURL  = "https://oauth.reddit.com"
)

type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

func (c Credentials) validate() error {
	switch {
	case c.ClientID == "":
		return errors.New("reddit client id is empty")
	case c.ClientSecret == "":
		return errors.New("reddit client secret is empty")
	case c.Username == "":
		return errors.New("reddit username is empty")
	case c.Password == "":
		return errors.New("reddit password is empty")
	case c.UserAgent == "":
		return errors.New("reddit user agent is empty")
	}
	return nil
}

// TokenCache persists the bearer token between restarts. Load returns an
// empty slice when nothing is cached.
type TokenCache interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

type Client struct {
	creds   Credentials
	http    *http.Client
	authURL string
	apiURL  string
	limiter *rate.Limiter
	cache   TokenCache

	tokenMu sync.Mutex
	token   *Token

	tokenAttempts uint
	tokenDelay    time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithBaseURLs(authURL, apiURL string) Option {
	return func(cl *Client) {
		cl.authURL = strings.TrimRight(authURL, "/")
		cl.apiURL = strings.TrimRight(apiURL, "/")
	}
}

// WithRequestsPerMinute bounds outgoing API calls. Reddit allows 100 per
// minute per OAuth client.
func WithRequestsPerMinute(n int) Option {
	return func(cl *Client) {
		if n <= 0 {
			cl.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		cl.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

func WithTokenCache(cache TokenCache) Option {
	return func(cl *Client) {
		cl.cache = cache
	}
}

func WithTokenRetry(attempts uint, delay time.Duration) Option {
	return func(cl *Client) {
		cl.tokenAttempts = attempts
		cl.tokenDelay = delay
	}
}

func NewClient(creds Credentials, options ...Option) (*Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	c := &Client{
		creds:         creds,
		authURL:       DefaultAuthURL,
		apiURL:        DefaultAPIURL,
		limiter:       rate.NewLimiter(rate.Every(time.Second), 1),
		tokenAttempts: 3,
		tokenDelay:    2 * time.Second,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New("reddit")
	}
	c.loadCachedToken()
	return c, nil
}

func (c *Client) Username() string {
	return c.creds.Username
}

// do sends an authenticated API request and returns the raw body. A 401
// invalidates the token and the request is replayed once.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, form url.Values) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		tok, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		endpoint := c.apiURL + path
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, errors.Wrap(err, "build reddit request")
		}
		req.Header.Set("Authorization", "bearer "+tok.AccessToken)
		req.Header.Set("User-Agent", c.creds.UserAgent)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", method, path)
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "read %s %s", method, path)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			logrus.WithFields(logrus.Fields{"path": path}).Warn("reddit: token rejected, refreshing")
			c.invalidateToken()
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		if err := parseAPIErrors(data); err != nil {
			return nil, err
		}
		return data, nil
	}
}
