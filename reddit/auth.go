package reddit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Token is a script-app bearer token obtained with the password grant.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Scope       string    `json:"scope"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token can still be used, keeping a minute of
// slack for clock skew.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Add(time.Minute).Before(t.ExpiresAt)
}

// Login forces a fresh password grant, bypassing the cache.
func (c *Client) Login(ctx context.Context) (*Token, error) {
	c.invalidateToken()
	return c.accessToken(ctx)
}

func (c *Client) accessToken(ctx context.Context) (*Token, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token.Valid(time.Now()) {
		return c.token, nil
	}

	var tok *Token
	err := retry.Do(
		func() error {
			var err error
			tok, err = c.fetchToken(ctx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.tokenAttempts),
		retry.Delay(c.tokenDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logrus.WithFields(logrus.Fields{"attempt": n + 1}).Warnf("reddit: token request failed: %v", err)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "reddit login failed")
	}

	c.token = tok
	c.saveCachedToken()
	logrus.WithFields(logrus.Fields{
		"username":   c.creds.Username,
		"expires_at": tok.ExpiresAt.Format(time.RFC3339),
	}).Info("reddit: logged in")
	return tok, nil
}

func (c *Client) fetchToken(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.creds.Username)
	form.Set("password", c.creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("User-Agent", c.creds.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, retry.Unrecoverable(&StatusError{StatusCode: resp.StatusCode, Body: string(data)})
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	// Bad passwords come back as 200 {"error": "invalid_grant"}.
	if e := gjson.GetBytes(data, "error"); e.Exists() {
		return nil, retry.Unrecoverable(errors.Errorf("token endpoint returned error: %s", e.String()))
	}

	access := gjson.GetBytes(data, "access_token").String()
	if access == "" {
		return nil, errors.New("token endpoint returned no access_token")
	}
	expiresIn := gjson.GetBytes(data, "expires_in").Int()
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return &Token{
		AccessToken: access,
		TokenType:   gjson.GetBytes(data, "token_type").String(),
		Scope:       gjson.GetBytes(data, "scope").String(),
		ExpiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = nil
	c.tokenMu.Unlock()
}

func (c *Client) loadCachedToken() {
	if c.cache == nil {
		return
	}
	data, err := c.cache.Load()
	if err != nil {
		logrus.Warnf("reddit: failed to load cached token: %v", err)
		return
	}
	if len(data) == 0 {
		return
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		logrus.Warnf("reddit: failed to unmarshal cached token: %v", err)
		return
	}
	if tok.Valid(time.Now()) {
		c.token = &tok
		logrus.Debugf("reddit: reusing cached token")
	}
}

func (c *Client) saveCachedToken() {
	if c.cache == nil || c.token == nil {
		return
	}
	data, err := json.Marshal(c.token)
	if err != nil {
		return
	}
	if err := c.cache.Save(data); err != nil {
		logrus.Warnf("reddit: failed to save token: %v", err)
	}
}
