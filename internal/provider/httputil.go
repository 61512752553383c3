package provider

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseRetryAfter interprets a Retry-After header value given either as
// delta-seconds or as an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// StatusError maps a non-2xx response status to the source error taxonomy.
// It returns nil for 2xx statuses.
func StatusError(name SourceName, resp *http.Response, id string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &ErrNotFound{Provider: name, ID: id}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ErrAuthRequired{Provider: name, Reason: resp.Status}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ErrRateLimited{
			Provider:   name,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	default:
		return &ErrProviderUnavailable{
			Provider:   name,
			Cause:      &HTTPStatusError{StatusCode: resp.StatusCode},
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
}

// HTTPStatusError carries an unexpected HTTP status code.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return "unexpected HTTP " + strconv.Itoa(e.StatusCode)
}

var yearPattern = regexp.MustCompile(`\b(1[0-9]{3}|20[0-9]{2})\b`)

// ParseYear extracts the first plausible four-digit year from s, such as a
// release date "1997-03-01" or a copyright line "(P) 1963 Deutsche Grammophon".
// It returns 0 when none is found.
func ParseYear(s string) int {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}
