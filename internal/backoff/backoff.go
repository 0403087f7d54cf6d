// Package backoff implements the bounded exponential retry used around
// Monero transfer-proof verification: monerod/wallet-rpc
// need several confirmations before a transfer proof resolves, so callers
// must retry rather than fail on the first miss, but a genuinely invalid
// proof must still eventually give up rather than loop forever.
//
// Grounded on the retry loops original_source/.../transfer_proof.rs builds
// around its own Monero daemon RPC client, expressed here as a reusable
// helper rather than inlined into the Monero package.
package backoff

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when Retry's deadline elapses without fn ever
// returning a nil error.
var ErrExhausted = errors.New("backoff: retries exhausted")

// permanent wraps an error that Retry must not retry: the condition it
// describes cannot resolve itself on a later attempt (a wrong transfer
// amount, say, as opposed to a transfer that simply hasn't confirmed yet).
type permanent struct {
	err error
}

func (p *permanent) Error() string { return p.err.Error() }

func (p *permanent) Unwrap() error { return p.err }

// Permanent marks err as non-retryable: Retry returns it immediately
// instead of sleeping and calling fn again. errors.Is/errors.As against the
// original err still work through the wrapper.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Policy describes a capped exponential backoff schedule.
type Policy struct {
	// Base is the first retry's delay.
	Base time.Duration
	// Max caps any individual delay.
	Max time.Duration
	// Deadline is the total wall-clock budget across all attempts.
	Deadline time.Duration
}

// DefaultPolicy retries starting at 1 second, doubling up to a 5 minute
// cap, for up to an hour total, the schedule used for transfer proof
// verification.
var DefaultPolicy = Policy{
	Base:     time.Second,
	Max:      5 * time.Minute,
	Deadline: time.Hour,
}

// Retry calls fn until it returns a nil error, sleeping an exponentially
// increasing delay (capped at p.Max) between attempts, until ctx is
// cancelled or p.Deadline elapses since the first call, whichever comes
// first. It returns the last error fn produced, or ErrExhausted if the
// deadline elapsed without ever calling fn.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	deadline := time.Now().Add(p.Deadline)
	delay := p.Base

	var lastErr error = ErrExhausted
	for attempt := 0; time.Now().Before(deadline); attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var perm *permanent
		if errors.As(lastErr, &perm) {
			return perm.Unwrap()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.Max {
			delay = p.Max
		}
	}

	return lastErr
}
