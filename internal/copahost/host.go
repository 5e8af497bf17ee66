// Package copahost adapts a raw copa.Datapath to the error-handling
// policy in spec.md §7: datapath IPC failure on program installation is
// recoverable (retried with bounded backoff) rather than fatal, while a
// failure on a later field update is logged and the control loop
// continues with the previous decision rather than retried inline.
package copahost

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/ccp-copa/copa/internal/copa"
)

// RetryingDatapath wraps a copa.Datapath, retrying Install with bounded
// exponential backoff on failure: the datapath IPC channel may still be
// coming up when a flow is created, and spec.md §7 treats that as
// recoverable rather than fatal.
type RetryingDatapath struct {
	inner copa.Datapath
	log   *zap.Logger

	maxElapsed time.Duration
}

// New wraps inner with the default retry policy: exponential backoff,
// bounded to maxElapsed total (five seconds is generous for a local IPC
// channel that is merely still initializing).
func New(inner copa.Datapath, log *zap.Logger) *RetryingDatapath {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryingDatapath{inner: inner, log: log, maxElapsed: 5 * time.Second}
}

// Install retries inner.Install with exponential backoff until it
// succeeds or maxElapsed is exceeded.
func (d *RetryingDatapath) Install(program string) (copa.Scope, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.maxElapsed)
	defer cancel()

	scope, err := backoff.Retry(ctx, func() (copa.Scope, error) {
		s, err := d.inner.Install(program)
		if err != nil {
			d.log.Warn("datapath install failed, retrying", zap.Error(err))
			return nil, err
		}
		return s, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()))
	if err != nil {
		return nil, err
	}
	return scope, nil
}

// UpdateField forwards to inner without retry: a single missed cwnd/rate
// push is not fatal, and the next report will push a fresh decision
// anyway. A batch update that partially fails may itself return a
// combined error (see internal/copasim, which validates each field and
// joins failures with go.uber.org/multierr); this wrapper only logs it.
func (d *RetryingDatapath) UpdateField(scope copa.Scope, updates []copa.FieldUpdate) error {
	if err := d.inner.UpdateField(scope, updates); err != nil {
		d.log.Warn("datapath field update failed", zap.Error(err))
		return err
	}
	return nil
}
