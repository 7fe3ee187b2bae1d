package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/desertthunder/plsync/internal/shared"
)

// Outcome is the state of a [Retry] after recording an attempt.
type Outcome int

const (
	Pending Outcome = iota // no attempt recorded yet
	Succeeded
	Retrying
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Retrying:
		return "retrying"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Policy bounds retries. Zero values take defaults of 3 attempts, 1s initial and 30s maximum backoff.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	return p
}

// Retry is the retry state machine of one fetch: attempt count, next delay and terminal outcome.
//
// It performs no I/O. Callers run an attempt, pass its error to [Retry.Record] and act on the
// returned [Outcome], sleeping [Retry.NextDelay] before the next attempt while Retrying.
type Retry struct {
	policy    Policy
	attempt   int
	nextDelay time.Duration
	outcome   Outcome
	lastErr   error
}

// NewRetry starts a state machine in the Pending state.
func NewRetry(p Policy) *Retry {
	return &Retry{policy: p.withDefaults()}
}

func (r *Retry) Attempt() int             { return r.attempt }
func (r *Retry) NextDelay() time.Duration { return r.nextDelay }
func (r *Retry) Outcome() Outcome         { return r.outcome }
func (r *Retry) Err() error               { return r.lastErr }

// Done reports whether the machine reached a terminal outcome.
func (r *Retry) Done() bool {
	return r.outcome == Succeeded || r.outcome == Failed
}

// Record transitions on the result of an attempt.
//
//   - nil error: Succeeded
//   - non-transient error: Failed, without further attempts
//   - transient error with attempts left: Retrying with an exponentially growing delay
//   - transient error on the last attempt: Failed
func (r *Retry) Record(err error) Outcome {
	if r.Done() {
		return r.outcome
	}

	r.attempt++
	r.lastErr = err
	r.nextDelay = 0

	switch {
	case err == nil:
		r.outcome = Succeeded
	case !IsTransient(err):
		r.outcome = Failed
	case r.attempt >= r.policy.MaxAttempts:
		r.outcome = Failed
	default:
		r.outcome = Retrying
		r.nextDelay = r.backoff()
	}
	return r.outcome
}

// backoff doubles the initial delay per completed attempt, capped at MaxBackoff.
func (r *Retry) backoff() time.Duration {
	d := r.policy.InitialBackoff
	for i := 1; i < r.attempt; i++ {
		d *= 2
		if d >= r.policy.MaxBackoff {
			return r.policy.MaxBackoff
		}
	}
	return min(d, r.policy.MaxBackoff)
}

// StatusError is a non-2xx response from a content host.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Unwrap classifies the status: 408, 429 and 5xx are transient, everything else permanent.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case e.Code == http.StatusRequestTimeout, e.Code >= 500:
		return shared.ErrTransient
	default:
		return shared.ErrPermanent
	}
}

// IsTransient reports whether err is worth retrying: timeouts and rate limiting.
//
// Cancellation of the caller's context, missing content and a full disk are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, shared.ErrPermanent), errors.Is(err, syscall.ENOSPC):
		return false
	case errors.Is(err, shared.ErrTransient), errors.Is(err, shared.ErrRateLimited), errors.Is(err, shared.ErrTimeout):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// classifyToolOutput maps downloader tool output to a failure class.
func classifyToolOutput(out string) error {
	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "http error 429"), strings.Contains(lower, "too many requests"):
		return shared.ErrRateLimited
	case strings.Contains(lower, "timed out"), strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection reset"), strings.Contains(lower, "http error 5"):
		return shared.ErrTransient
	default:
		return shared.ErrPermanent
	}
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
