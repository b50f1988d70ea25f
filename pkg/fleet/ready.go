package fleet

import (
	"context"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"time"
)

const (
	DefaultReadyInterval = 5 * time.Second
	DefaultReadyAttempts = 60
)

var ErrNotReady = errors.New("nodes not ready")

// WaitReady polls Status until every lightning service and every circuit breaker that is
// present reports StatusRunning, checking at most attempts times. A service in StatusFailed
// stops the wait at once.
func (f *Fleet) WaitReady(ctx context.Context, interval time.Duration, attempts uint64) error {
	check := func() error {
		var pending []string
		for _, s := range f.Status(ctx) {
			if s.Err != nil {
				klog.Warningf("check %s: %v", s.Hostname, s.Err)
				pending = append(pending, s.Hostname)
				continue
			}
			if s.Lightning == backend.StatusFailed || s.CircuitBreaker == backend.StatusFailed {
				return backoff.Permanent(errors.Errorf("%s failed: ln=%s cb=%s", s.Hostname, s.Lightning, s.CircuitBreaker))
			}
			if s.Lightning != backend.StatusRunning {
				pending = append(pending, s.Hostname)
				continue
			}
			if s.CircuitBreaker != backend.StatusRunning && s.CircuitBreaker != backend.StatusNotPresent {
				pending = append(pending, s.Hostname)
			}
		}
		if len(pending) > 0 {
			return errors.Wrapf(ErrNotReady, "%v", pending)
		}
		return nil
	}

	if attempts == 0 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), attempts-1), ctx)
	notify := func(err error, d time.Duration) {
		klog.Infof("%v, check again in %s", err, d)
	}
	if err := backoff.RetryNotify(check, b, notify); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	return nil
}
