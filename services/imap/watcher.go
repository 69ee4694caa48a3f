package imap

import (
	"context"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
)

const (
	idleLogoutTimeout = 25 * time.Minute
	idlePollInterval  = 20 * time.Minute

	// watchRetryFloor is how long a watch must survive before its next
	// failure is treated as fresh rather than part of the same outage.
	watchRetryFloor = time.Minute
)

// Watcher holds a second, dedicated connection in IDLE so a new message
// arrival triggers a scan immediately instead of waiting for the next poll
// tick. IDLE occupies a connection for its whole duration, so the watcher
// never shares the scan session's connection; it only fires the trigger and
// the monitor's worker does the scanning. On servers without IDLE the client
// falls back to polling the watch connection at idlePollInterval, and the
// cron mailbox poll keeps running either way.
type Watcher struct {
	dialer    interfaces.MailboxDialer
	mailbox   string
	network   NetworkChecker
	log       logger.Logger
	onNewMail func()

	backoff *backoff.Backoff
}

func NewWatcher(dialer interfaces.MailboxDialer, mailbox string, network NetworkChecker, log logger.Logger, onNewMail func()) *Watcher {
	return &Watcher{
		dialer:    dialer,
		mailbox:   mailbox,
		network:   network,
		log:       log,
		onNewMail: onNewMail,
		backoff: &backoff.Backoff{
			Min:    5 * time.Second,
			Max:    5 * time.Minute,
			Factor: 2,
			Jitter: false,
		},
	}
}

// Run keeps a watch connection alive until the context is cancelled. Failures
// retry with backoff; the monitor never depends on the watcher being up, the
// poll schedule covers any window the watcher misses.
func (w *Watcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if !w.network.IsConnected() {
			if !w.sleep(ctx, 10*time.Second) {
				return
			}
			continue
		}

		started := time.Now()
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return
		}

		if time.Since(started) >= watchRetryFloor {
			w.backoff.Reset()
		}
		delay := w.backoff.Duration()
		if err != nil {
			w.log.Warnf("mailbox watch ended: %v, restarting in %s", err, delay)
		}
		if !w.sleep(ctx, delay) {
			return
		}
	}
}

// watch runs one IDLE session: dial, select read-only, forward mailbox
// updates to the scan trigger until the connection drops or the context ends.
func (w *Watcher) watch(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Watcher.watch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("mailbox", w.mailbox)

	conn, err := w.dialer.Dial(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	defer w.close(conn)

	// Read-only select; the watcher only listens, the scan session mutates.
	if _, err := conn.Select(w.mailbox, true); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	supported, err := conn.Support("IDLE")
	if err != nil {
		w.log.Warnf("could not check IDLE support: %v", err)
	}
	span.SetTag("idle_supported", supported)
	if !supported {
		w.log.Infof("server does not advertise IDLE, falling back to %s polling on the watch connection", idlePollInterval)
	}

	updates := make(chan client.Update, 100)
	conn.SetUpdates(updates)

	var stopOnce sync.Once
	stop := make(chan struct{})
	stopIdle := func() {
		stopOnce.Do(func() {
			close(stop)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stopIdle()
		case <-stop:
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if u, isMailbox := update.(*client.MailboxUpdate); isMailbox {
					w.log.Infof("mailbox update, %d messages, triggering scan", u.Mailbox.Messages)
					w.onNewMail()
				}
			case <-stop:
				return
			}
		}
	}()

	err = conn.Idle(stop, &client.IdleOptions{
		LogoutTimeout: idleLogoutTimeout,
		PollInterval:  idlePollInterval,
	})
	stopIdle()
	<-done
	conn.SetUpdates(nil)

	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.LogFields(tracingLog.String("stop", "idle ended cleanly"))
	return nil
}

func (w *Watcher) close(conn interfaces.MailboxConn) {
	conn.SetTimeout(5 * time.Second)
	if err := conn.Logout(); err != nil {
		w.log.Debugf("watch connection logout: %v", err)
	}
}

// sleep waits ctx-aware; false means the context ended first.
func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
