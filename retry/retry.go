// Package retry runs remote calls under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// NewBackOff builds the base policy for each call. Tests swap it for
// backoff.ZeroBackOff.
var NewBackOff = func() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

// Do runs op until it succeeds, returns a backoff.Permanent error, or
// maxRetries retries have been spent. maxRetries of 0 runs op once.
func Do(ctx context.Context, maxRetries int, op func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(NewBackOff(), uint64(maxRetries)), ctx)
	err := backoff.Retry(op, b)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// Permanent marks err so Do stops retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// TemporaryStatus reports whether an HTTP status is worth retrying.
func TemporaryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
