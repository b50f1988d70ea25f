package invoker

import (
	"context"
	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"time"
)

const (
	DefaultMaxAttempts = 20
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 300 * time.Second
)

// Policy bounds the exponential backoff: the delay starts at BaseDelay, doubles after every
// failed attempt, never exceeds MaxDelay, and at most MaxAttempts executions are made.
type Policy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

type Retrier struct {
	policy Policy
	clock  clockwork.Clock
	notify backoff.Notify
}

type RetryOption func(r *Retrier)

// WithClock replaces the wall clock used to wait between attempts.
func WithClock(clock clockwork.Clock) RetryOption {
	return func(r *Retrier) {
		r.clock = clock
	}
}

// WithNotify registers a callback invoked before every wait with the failure and the delay.
func WithNotify(notify backoff.Notify) RetryOption {
	return func(r *Retrier) {
		r.notify = notify
	}
}

func NewRetrier(policy Policy, opts ...RetryOption) *Retrier {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	r := &Retrier{
		policy: policy,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrier) Policy() Policy {
	return r.policy
}

func (r *Retrier) newBackOff(ctx context.Context) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     r.policy.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         r.policy.MaxDelay,
		MaxElapsedTime:      0,
		Clock:               r.clock,
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, r.policy.MaxAttempts-1), ctx)
}

// Wrap returns a Call that retries call until it succeeds, fails permanently, the context
// is done, or the attempt budget is spent. Errors wrapped with backoff.Permanent stop the
// loop immediately and are returned unwrapped.
func (r *Retrier) Wrap(op string, call Call) Call {
	return func(ctx context.Context) (Result, error) {
		var (
			result   Result
			last     error
			attempts int
		)

		operation := func() error {
			attempts++
			res, err := call(ctx)
			if err != nil {
				last = err
				return err
			}
			result = res
			return nil
		}

		notify := func(err error, delay time.Duration) {
			klog.Warningf("%s attempt %d failed, retry in %s: %v", op, attempts, delay, err)
			if r.notify != nil {
				r.notify(err, delay)
			}
		}

		err := backoff.RetryNotifyWithTimer(operation, r.newBackOff(ctx), notify, &clockTimer{clock: r.clock})
		if err == nil {
			return result, nil
		}

		var permanent *backoff.PermanentError
		if errors.As(last, &permanent) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "%s interrupted after %d attempts, last error: %v", op, attempts, last)
		}

		exhausted := &RetriesExhaustedError{Op: op, Attempts: attempts, Err: last}
		klog.Errorf("%v", exhausted)
		return nil, exhausted
	}
}

// clockTimer adapts a clockwork clock to backoff.Timer.
type clockTimer struct {
	clock clockwork.Clock
	c     <-chan time.Time
}

func (t *clockTimer) Start(duration time.Duration) {
	t.c = t.clock.After(duration)
}

func (t *clockTimer) Stop() {}

func (t *clockTimer) C() <-chan time.Time {
	return t.c
}
