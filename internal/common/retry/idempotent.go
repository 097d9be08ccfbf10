// Package retry wraps external calls whose repeated execution is harmless.
package retry

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy is three attempts with a fixed 0.8s pause between them.
var DefaultPolicy = Policy{Attempts: 3, Delay: 800 * time.Millisecond}

// AlreadyPhrases are lowercase fragments of 400 response bodies that mean the
// requested state already holds.
var AlreadyPhrases = []string{
	"you cannot change the user's role to the same role",
	"group join request is invalid",
	"user is already a member",
}

// IsIdempotentOutcome reports whether a response means "done", including the
// 400 bodies the rank service returns when nothing needed to change.
func IsIdempotentOutcome(status int, body string) bool {
	if status >= 200 && status < 300 {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	lower := strings.ToLower(body)
	for _, phrase := range AlreadyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Call runs op under DefaultPolicy.
func Call(ctx context.Context, op func(ctx context.Context) error) error {
	return CallWithPolicy(ctx, DefaultPolicy, op)
}

// CallWithPolicy runs op until it succeeds, returns a Permanent error, the
// context ends, or the attempts are spent. The last error is returned.
func CallWithPolicy(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)
	return backoff.Retry(func() error {
		return op(ctx)
	}, b)
}

// Do is CallWithPolicy for operations that produce a value.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := CallWithPolicy(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
