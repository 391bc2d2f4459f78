package reddit

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrorItem is one entry of the `json.errors` array Reddit returns with
// api_type=json: [type, message, field].
type ErrorItem struct {
	Type    string
	Message string
	Field   string
}

// APIError carries the error items of a request Reddit rejected.
type APIError struct {
	Items []ErrorItem
}

func (e *APIError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		s := fmt.Sprintf("%s: '%s'", it.Type, it.Message)
		if it.Field != "" {
			s += fmt.Sprintf(" on field '%s'", it.Field)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

func (e *APIError) HasType(t string) bool {
	for _, it := range e.Items {
		if it.Type == t {
			return true
		}
	}
	return false
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("received %d HTTP response", e.StatusCode)
	}
	return fmt.Sprintf("received %d HTTP response: %s", e.StatusCode, body)
}

// IsRateLimited reports whether err is Reddit telling us to slow down,
// either as a RATELIMIT error item or a 429.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.HasType("RATELIMIT") {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests
}

// IsForbidden reports whether the account may not act on the target
// (banned from the subreddit, archived or locked thread).
func IsForbidden(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.HasType("THREAD_LOCKED") || apiErr.HasType("SUBREDDIT_NOTALLOWED") || apiErr.HasType("USER_BLOCKED"))
}

func parseAPIErrors(body []byte) error {
	errs := gjson.GetBytes(body, "json.errors").Array()
	if len(errs) == 0 {
		return nil
	}
	items := make([]ErrorItem, 0, len(errs))
	for _, e := range errs {
		parts := e.Array()
		it := ErrorItem{}
		if len(parts) > 0 {
			it.Type = parts[0].String()
		}
		if len(parts) > 1 {
			it.Message = parts[1].String()
		}
		if len(parts) > 2 {
			it.Field = parts[2].String()
		}
		items = append(items, it)
	}
	return &APIError{Items: items}
}
