package media

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const retryDelay = 300 * time.Millisecond

// withRetry runs op with a per-attempt timeout and retries it once. Errors
// wrapped with backoff.Permanent are not retried.
func withRetry(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), 1), ctx)
	return backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return op(attemptCtx)
	}, b)
}
