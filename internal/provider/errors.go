package provider

import (
	"errors"
	"time"
)

// Kind is the failure category of a source error.
type Kind int

// Failure categories. KindNone is returned for a nil error.
const (
	KindNone Kind = iota
	KindTransient
	KindRateLimited
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by a source to its failure category.
// Unrecognized errors are treated as transient.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var authErr *ErrAuthRequired
	if errors.As(err, &authErr) {
		return KindAuth
	}
	var rateErr *ErrRateLimited
	if errors.As(err, &rateErr) {
		return KindRateLimited
	}
	var nfErr *ErrNotFound
	if errors.As(err, &nfErr) {
		return KindNotFound
	}
	// Timeouts, network errors, ErrProviderUnavailable and anything else.
	return KindTransient
}

// RetryAfter returns the server-suggested delay carried by err, or zero.
func RetryAfter(err error) time.Duration {
	var rateErr *ErrRateLimited
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}
	var unavail *ErrProviderUnavailable
	if errors.As(err, &unavail) {
		return unavail.RetryAfter
	}
	return 0
}
