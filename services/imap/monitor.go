package imap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/enum"
	er "github.com/partsvault/approvalstack/internal/errors"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
	"github.com/partsvault/approvalstack/services/classifier"
)

// Reconciler applies one classified decision. Implemented by the reconciler
// service; substituted with a double in tests.
type Reconciler interface {
	ProcessEmailApproval(ctx context.Context, trackingCode, decidedBy string, decision enum.ApprovalDecision, rawText string) error
}

// Monitor is the top-level mailbox monitor. All scans run on a single worker
// goroutine; timers and mail events only enqueue a trigger, so overlapping
// triggers coalesce instead of racing.
type Monitor struct {
	session    *Session
	reconnect  *ReconnectionSupervisor
	scanner    *Scanner
	marker     *Marker
	reconciler Reconciler
	log        logger.Logger

	scanTrigger chan struct{}
	fullScan    atomic.Bool

	mu         sync.Mutex
	lastError  string
	lastScanAt time.Time

	processed int64
	unknown   int64
	failed    int64
}

func NewMonitor(
	session *Session,
	reconnect *ReconnectionSupervisor,
	scanner *Scanner,
	marker *Marker,
	reconciler Reconciler,
	log logger.Logger,
) *Monitor {
	m := &Monitor{
		session:     session,
		reconnect:   reconnect,
		scanner:     scanner,
		marker:      marker,
		reconciler:  reconciler,
		log:         log,
		scanTrigger: make(chan struct{}, 1),
	}
	reconnect.SetRetryHandler(m.setFullScanFlag)
	return m
}

// Run connects the session and consumes scan triggers until the context is
// cancelled or reconnection is exhausted. The first scan after startup is a
// full scan so replies that arrived while the process was down are recovered.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("starting mailbox monitor")

	if err := m.session.Connect(ctx); err != nil {
		m.recordError(err)
		if err := m.reconnect.Reconnect(ctx); err != nil {
			return err
		}
	}
	m.reconnect.Reset()

	m.TriggerFullScan()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("stopping mailbox monitor")
			m.session.Close()
			return nil
		case <-m.scanTrigger:
			if err := m.runScan(ctx); err != nil {
				if errors.Is(err, er.ErrReconnectAttemptsExhausted) {
					m.session.Close()
					return err
				}
				if ctx.Err() != nil {
					m.session.Close()
					return nil
				}
			}
		}
	}
}

// TriggerScan requests an incremental scan. Non-blocking; a trigger already
// pending absorbs the new one.
func (m *Monitor) TriggerScan() {
	select {
	case m.scanTrigger <- struct{}{}:
	default:
	}
}

// TriggerFullScan requests a scan over the whole lookback window, used after
// outages and reconnects.
func (m *Monitor) TriggerFullScan() {
	m.setFullScanFlag()
	m.TriggerScan()
}

func (m *Monitor) setFullScanFlag() {
	m.fullScan.Store(true)
}

// Status reports a snapshot for the status endpoint.
func (m *Monitor) Status() interfaces.MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.session.State()
	return interfaces.MonitorStatus{
		Connected:        state == enum.SessionAuthenticated,
		SessionState:     state,
		LastError:        m.lastError,
		ReconnectAttempt: m.reconnect.Attempt(),
		LastScanAt:       m.lastScanAt,
		Processed:        atomic.LoadInt64(&m.processed),
		Unknown:          atomic.LoadInt64(&m.unknown),
		Failed:           atomic.LoadInt64(&m.failed),
	}
}

func (m *Monitor) runScan(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "Monitor.runScan")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if !m.session.Healthy() {
		m.marker.Reset()
		if err := m.reconnect.Reconnect(ctx); err != nil {
			tracing.TraceErr(span, err)
			m.recordError(err)
			return err
		}
	}

	conn, err := m.session.Conn()
	if err != nil {
		// Network is down; connectivity restoration retriggers the scan.
		span.SetTag("skip", "session not authenticated")
		return nil
	}

	full := m.fullScan.Swap(false)
	span.SetTag("full_scan", full)

	messages, err := m.scanner.Scan(ctx, conn, full)
	if err != nil {
		tracing.TraceErr(span, err)
		m.recordError(err)
		if full {
			// Keep the flag so the retry still covers the window.
			m.fullScan.Store(true)
		}
		m.log.Errorf("mailbox scan failed: %v", err)
		return err
	}

	for _, msg := range messages {
		m.processMessage(ctx, conn, msg)
	}

	m.mu.Lock()
	m.lastScanAt = time.Now().UTC()
	m.lastError = ""
	m.mu.Unlock()

	return nil
}

// processMessage runs one message through classify, reconcile and mark. Only
// a reconciliation failure leaves the message unmarked for retry.
func (m *Monitor) processMessage(ctx context.Context, conn interfaces.MailboxConn, msg ScannedMessage) {
	result := classifier.Classify(classifier.ParsedMessage{
		Subject:  msg.Subject,
		From:     msg.From,
		BodyText: msg.BodyText,
	})

	if result.TrackingCode == "" {
		m.log.Infof("message uid %d has no tracking code, marking processed", msg.UID)
		m.mark(ctx, conn, msg.UID)
		return
	}

	if result.Decision == enum.DecisionUnknown {
		atomic.AddInt64(&m.unknown, 1)
		m.log.Warnf("could not classify reply for code %s from %s, surfacing for manual review",
			result.TrackingCode, result.SenderEmail)
		m.mark(ctx, conn, msg.UID)
		return
	}

	err := m.reconciler.ProcessEmailApproval(ctx, result.TrackingCode, result.SenderEmail, result.Decision, msg.BodyText)
	if err != nil {
		atomic.AddInt64(&m.failed, 1)
		m.recordError(err)
		m.log.Errorf("reconciliation failed for code %s, leaving message unmarked: %v",
			result.TrackingCode, err)
		return
	}

	atomic.AddInt64(&m.processed, 1)
	m.mark(ctx, conn, msg.UID)
}

func (m *Monitor) mark(ctx context.Context, conn interfaces.MailboxConn, uid uint32) {
	if err := m.marker.MarkProcessed(ctx, conn, uid); err != nil {
		m.log.Errorf("failed to mark message uid %d processed: %v", uid, err)
	}
}

func (m *Monitor) recordError(err error) {
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
}
