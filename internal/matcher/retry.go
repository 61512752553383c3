package matcher

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sydlexius/cadenza/internal/provider"
)

// retryPolicy bounds the attempts of a single stage call. Transient failures
// and server-side throttling have separate budgets; auth and not-found
// failures are never retried.
type retryPolicy struct {
	callTimeout      time.Duration
	transientRetries int
	rateLimitRetries int
	baseDelay        time.Duration
	maxDelay         time.Duration
	maxRetryAfter    time.Duration
}

// call runs fn under the policy. Each attempt gets its own deadline. It
// returns the number of attempts made and the last source error.
func (p retryPolicy) call(ctx context.Context, logger *slog.Logger, stage string, fn func(context.Context) error) (int, error) {
	transientLeft := p.transientRetries
	rateLeft := p.rateLimitRetries
	attempts := 0
	var lastErr error

	op := func() (struct{}, error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		defer cancel()

		err := fn(callCtx)
		lastErr = err
		switch provider.Classify(err) {
		case provider.KindNone:
			return struct{}{}, nil
		case provider.KindAuth, provider.KindNotFound:
			return struct{}{}, backoff.Permanent(err)
		case provider.KindRateLimited:
			if rateLeft == 0 {
				return struct{}{}, backoff.Permanent(err)
			}
			rateLeft--
			if hint := provider.RetryAfter(err); hint > 0 {
				hint = min(hint, p.maxRetryAfter)
				return struct{}{}, backoff.RetryAfter(int(math.Ceil(hint.Seconds())))
			}
			return struct{}{}, err
		default:
			if ctx.Err() != nil || transientLeft == 0 {
				return struct{}{}, backoff.Permanent(err)
			}
			transientLeft--
			return struct{}{}, err
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.baseDelay
	b.MaxInterval = p.maxDelay

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(1+p.transientRetries+p.rateLimitRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("retrying source call",
				slog.String("stage", stage),
				slog.String("kind", provider.Classify(lastErr).String()),
				slog.Duration("next", next),
				slog.String("error", err.Error()))
		}),
	)
	if err == nil {
		return attempts, nil
	}
	if lastErr != nil {
		return attempts, lastErr
	}
	return attempts, err
}
