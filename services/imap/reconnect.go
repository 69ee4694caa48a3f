package imap

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/partsvault/approvalstack/config"
	er "github.com/partsvault/approvalstack/internal/errors"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
)

// NetworkChecker reports the last observed network state without probing.
type NetworkChecker interface {
	IsConnected() bool
}

// ReconnectionSupervisor retries failed mailbox sessions with bounded
// exponential backoff. After maxAttempts consecutive failures it gives up
// with ErrReconnectAttemptsExhausted so the process can exit non-zero and be
// restarted externally.
type ReconnectionSupervisor struct {
	session     *Session
	network     NetworkChecker
	log         logger.Logger
	maxAttempts int
	onRetry     func()

	mu      sync.Mutex
	backoff *backoff.Backoff
	attempt int
}

func NewReconnectionSupervisor(session *Session, network NetworkChecker, cfg *config.MonitorConfig, log logger.Logger) *ReconnectionSupervisor {
	return &ReconnectionSupervisor{
		session:     session,
		network:     network,
		log:         log,
		maxAttempts: cfg.ReconnectMaxAttempts,
		backoff: &backoff.Backoff{
			Min:    time.Duration(cfg.ReconnectBaseDelay) * time.Millisecond,
			Max:    time.Duration(cfg.ReconnectMaxDelay) * time.Millisecond,
			Factor: 2,
			Jitter: false,
		},
	}
}

// SetRetryHandler registers a callback fired before every retry. The monitor
// uses it to schedule a full scan once the session is back.
func (r *ReconnectionSupervisor) SetRetryHandler(handler func()) {
	r.onRetry = handler
}

// Reconnect drives retries until the session is authenticated, attempts are
// exhausted, or the context is cancelled. When the network itself is down it
// returns immediately; connectivity restoration re-triggers reconnection.
func (r *ReconnectionSupervisor) Reconnect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReconnectionSupervisor.Reconnect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !r.network.IsConnected() {
			span.LogFields(tracingLog.String("skip", "network down"))
			r.log.Warn("skipping mailbox reconnect, network is down")
			return nil
		}

		r.mu.Lock()
		if r.attempt >= r.maxAttempts {
			r.mu.Unlock()
			tracing.TraceErr(span, er.ErrReconnectAttemptsExhausted)
			r.log.Errorf("giving up after %d reconnect attempts", r.maxAttempts)
			return er.ErrReconnectAttemptsExhausted
		}
		r.attempt++
		attempt := r.attempt
		delay := r.backoff.Duration()
		r.mu.Unlock()

		if r.onRetry != nil {
			r.onRetry()
		}

		r.log.Infof("mailbox reconnect attempt %d/%d in %s", attempt, r.maxAttempts, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := r.session.Connect(ctx)
		if err == nil {
			r.Reset()
			span.LogFields(tracingLog.Int("attempts_used", attempt))
			return nil
		}
		tracing.TraceErr(span, err)
		r.log.Errorf("mailbox reconnect attempt %d failed: %v", attempt, err)
	}
}

// Reset clears the attempt counter and backoff, called on a ready session.
func (r *ReconnectionSupervisor) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt = 0
	r.backoff.Reset()
}

// Attempt reports the current consecutive failure count.
func (r *ReconnectionSupervisor) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

// NextDelay exposes the delay the supervisor would use for the given attempt
// without mutating state.
func (r *ReconnectionSupervisor) NextDelay(attempt int) time.Duration {
	return r.backoff.ForAttempt(float64(attempt))
}
