package invoker

import (
	"context"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/QQGoblin/lnfleet/pkg/backend/fakebackend"
	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

type outcome struct {
	result Result
	err    error
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) notify(_ error, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
}

func (r *delayRecorder) get() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// runWithFakeClock starts call and advances the fake clock through exactly waits backoff sleeps.
func runWithFakeClock(t *testing.T, fc clockwork.FakeClock, call Call, waits int, step time.Duration) outcome {
	t.Helper()
	done := make(chan outcome, 1)
	go func() {
		res, err := call(context.Background())
		done <- outcome{res, err}
	}()
	for i := 0; i < waits; i++ {
		fc.BlockUntil(1)
		fc.Advance(step)
	}
	select {
	case out := <-done:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("call did not return")
		return outcome{}
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	const failures = 6
	fb := fakebackend.New("warnet")
	responses := make([]fakebackend.Response, 0, failures+1)
	for i := 0; i < failures; i++ {
		if i%2 == 0 {
			responses = append(responses, fakebackend.Fail("container not ready"))
		} else {
			responses = append(responses, fakebackend.OK("[lncli] rpc error: wallet locked"))
		}
	}
	responses = append(responses, fakebackend.OK(`{"identity_pubkey":"02ab"}`))
	fb.OnExec(0, backend.ServiceLightning, "getinfo", responses...)

	fc := clockwork.NewFakeClock()
	rec := &delayRecorder{}
	policy := Policy{MaxAttempts: 20, BaseDelay: time.Second, MaxDelay: 8 * time.Second}
	inv := New(fb, NewRetrier(policy, WithClock(fc), WithNotify(rec.notify)))

	call := func(ctx context.Context) (Result, error) {
		return inv.Invoke(ctx, 0, backend.ServiceLightning, "getinfo", "identity_pubkey")
	}
	out := runWithFakeClock(t, fc, call, failures, policy.MaxDelay)

	require.NoError(t, out.err)
	require.Equal(t, "02ab", out.result["identity_pubkey"])
	require.Equal(t, failures+1, fb.ExecCount(0, backend.ServiceLightning, "getinfo"))

	delays := rec.get()
	require.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second, 8 * time.Second,
	}, delays)
	for i := 1; i < len(delays); i++ {
		require.GreaterOrEqual(t, delays[i], delays[i-1])
		require.LessOrEqual(t, delays[i], policy.MaxDelay)
	}
}

func TestRetryExhausted(t *testing.T) {
	fb := fakebackend.New("warnet")
	fb.OnExec(1, backend.ServiceLightning, "walletbalance", fakebackend.Fail("connection refused"))

	fc := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 300 * time.Second}
	inv := New(fb, NewRetrier(policy, WithClock(fc)))

	call := func(ctx context.Context) (Result, error) {
		return inv.Invoke(ctx, 1, backend.ServiceLightning, "walletbalance")
	}
	out := runWithFakeClock(t, fc, call, int(policy.MaxAttempts)-1, policy.MaxDelay)

	require.Error(t, out.err)
	var exhausted *RetriesExhaustedError
	require.True(t, errors.As(out.err, &exhausted))
	require.Equal(t, 5, exhausted.Attempts)
	require.Equal(t, "backend", exhausted.Kind())

	var be *backend.Error
	require.True(t, errors.As(out.err, &be))
	require.Equal(t, 5, fb.ExecCount(1, backend.ServiceLightning, "walletbalance"))
}

func TestRetryExhaustedByMalformedOutput(t *testing.T) {
	fb := fakebackend.New("warnet")
	fb.OnExec(0, backend.ServiceLightning, "newaddress p2wkh", fakebackend.OK(`{"not_address":"x"}`))

	fc := clockwork.NewFakeClock()
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	inv := New(fb, NewRetrier(policy, WithClock(fc)))

	call := func(ctx context.Context) (Result, error) {
		return inv.Invoke(ctx, 0, backend.ServiceLightning, "newaddress p2wkh", "address")
	}
	out := runWithFakeClock(t, fc, call, 2, time.Millisecond)

	var exhausted *RetriesExhaustedError
	require.True(t, errors.As(out.err, &exhausted))
	require.Equal(t, "malformed", exhausted.Kind())
	var malformed *MalformedResultError
	require.True(t, errors.As(out.err, &malformed))
	require.Equal(t, "address", malformed.Field)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := errors.New("unsupported")
	call := func(ctx context.Context) (Result, error) {
		attempts++
		return nil, backoff.Permanent(permanent)
	}

	r := NewRetrier(Policy{MaxAttempts: 10, BaseDelay: time.Hour, MaxDelay: time.Hour})
	_, err := r.Wrap("op", call)(context.Background())

	require.Equal(t, 1, attempts)
	require.Equal(t, permanent, err)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	call := func(ctx context.Context) (Result, error) {
		cancel()
		return nil, errors.New("boom")
	}

	r := NewRetrier(Policy{MaxAttempts: 10, BaseDelay: time.Hour, MaxDelay: time.Hour})
	_, err := r.Wrap("op", call)(ctx)

	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestNewRetrierNormalisesPolicy(t *testing.T) {
	r := NewRetrier(Policy{BaseDelay: 10 * time.Second, MaxDelay: time.Second})
	require.Equal(t, uint64(1), r.Policy().MaxAttempts)
	require.Equal(t, 10*time.Second, r.Policy().MaxDelay)
}
