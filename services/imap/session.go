package imap

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/enum"
	er "github.com/partsvault/approvalstack/internal/errors"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
)

// Session owns the lifecycle of the single authenticated mailbox connection.
// State moves disconnected -> connecting -> connected -> authenticated; any
// error drops it back to disconnected.
type Session struct {
	dialer  interfaces.MailboxDialer
	mailbox string
	log     logger.Logger

	mu    sync.Mutex
	state enum.SessionState
	conn  interfaces.MailboxConn
}

func NewSession(dialer interfaces.MailboxDialer, mailbox string, log logger.Logger) *Session {
	return &Session{
		dialer:  dialer,
		mailbox: mailbox,
		log:     log,
		state:   enum.SessionDisconnected,
	}
}

// Connect establishes a fresh authenticated session and selects the inbox
// read-write. A connect while already connected first ends the stale session.
func (s *Session) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Session.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("mailbox", s.mailbox)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		span.LogFields(tracingLog.String("stale_session", string(s.state)))
		s.log.Warn("ending stale mailbox session before reconnect")
		s.closeLocked()
	}

	s.state = enum.SessionConnecting

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.state = enum.SessionDisconnected
		tracing.TraceErr(span, err)
		return err
	}
	s.state = enum.SessionConnected

	// Read-write select so processed messages can be moved and flagged.
	status, err := conn.Select(s.mailbox, false)
	if err != nil {
		_ = conn.Logout()
		s.state = enum.SessionDisconnected
		tracing.TraceErr(span, err)
		return err
	}

	s.conn = conn
	s.state = enum.SessionAuthenticated
	span.LogFields(tracingLog.Uint32("mailbox.messages", status.Messages))
	s.log.Infof("mailbox session ready, %s has %d messages", s.mailbox, status.Messages)

	return nil
}

// Conn returns the live connection, or an error when not authenticated.
func (s *Session) Conn() (interfaces.MailboxConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != enum.SessionAuthenticated || s.conn == nil {
		return nil, er.ErrSessionNotAuthenticated
	}
	return s.conn, nil
}

// State reports the current session state.
func (s *Session) State() enum.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Healthy probes the connection with a NOOP. A failed probe closes the
// session so the next Connect starts clean.
func (s *Session) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != enum.SessionAuthenticated || s.conn == nil {
		return false
	}
	if err := s.conn.Noop(); err != nil {
		s.log.Warnf("mailbox session probe failed: %v", err)
		s.closeLocked()
		return false
	}
	return true
}

// Close ends the session. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.conn != nil {
		s.conn.SetTimeout(5 * time.Second)
		done := make(chan struct{})
		go func(conn interfaces.MailboxConn) {
			_ = conn.Logout()
			close(done)
		}(s.conn)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.log.Warn("mailbox logout timed out")
		}
		s.conn = nil
	}
	s.state = enum.SessionDisconnected
}
