package imap

import (
	"context"
	"sync"

	goimap "github.com/emersion/go-imap"
	"github.com/opentracing/opentracing-go"

	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
)

// Marker moves processed messages into a dedicated folder so they never match
// a later scan. When the move fails it falls back to flagging the message in
// place. Messages that failed reconciliation are never handed to the marker.
type Marker struct {
	folder string
	log    logger.Logger

	mu            sync.Mutex
	folderEnsured bool
}

func NewMarker(folder string, log logger.Logger) *Marker {
	return &Marker{
		folder: folder,
		log:    log,
	}
}

// MarkProcessed moves one message to the processed folder, creating the
// folder lazily on first use. Errors are best-effort: the fallback flags the
// message seen and flagged so incremental scans skip it.
func (m *Marker) MarkProcessed(ctx context.Context, conn interfaces.MailboxConn, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Marker.MarkProcessed")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("uid", uid)
	span.SetTag("folder", m.folder)

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)

	if err := m.ensureFolder(conn); err != nil {
		tracing.TraceErr(span, err)
		m.log.Warnf("could not ensure processed folder %s: %v", m.folder, err)
		return m.flagFallback(span, conn, seqSet, uid)
	}

	if err := conn.UidMove(seqSet, m.folder); err != nil {
		tracing.TraceErr(span, err)
		m.log.Warnf("move of uid %d to %s failed, flagging instead: %v", uid, m.folder, err)
		return m.flagFallback(span, conn, seqSet, uid)
	}

	return nil
}

func (m *Marker) flagFallback(span opentracing.Span, conn interfaces.MailboxConn, seqSet *goimap.SeqSet, uid uint32) error {
	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	flags := []interface{}{goimap.SeenFlag, goimap.FlaggedFlag}
	if err := conn.UidStore(seqSet, item, flags, nil); err != nil {
		tracing.TraceErr(span, err)
		m.log.Errorf("flag fallback for uid %d failed: %v", uid, err)
		return err
	}
	return nil
}

// ensureFolder creates the processed folder once per connection lifetime.
func (m *Marker) ensureFolder(conn interfaces.MailboxConn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.folderEnsured {
		return nil
	}

	mailboxes := make(chan *goimap.MailboxInfo, 20)
	if err := conn.List("", m.folder, mailboxes); err != nil {
		return err
	}

	exists := false
	for info := range mailboxes {
		if info.Name == m.folder {
			exists = true
		}
	}

	if !exists {
		if err := conn.Create(m.folder); err != nil {
			return err
		}
		m.log.Infof("created mailbox folder %s", m.folder)
	}

	m.folderEnsured = true
	return nil
}

// Reset forgets the ensured-folder state, called after reconnects.
func (m *Marker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folderEnsured = false
}
