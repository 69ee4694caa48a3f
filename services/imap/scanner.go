package imap

import (
	"context"
	"net/textproto"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/partsvault/approvalstack/config"
	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
)

// subjectToken is the marker every approval request subject carries. Server
// side SUBJECT search is substring-based, the OR keeps reply-prefixed
// subjects matching on servers with stricter implementations.
const subjectToken = "PO-APPROVAL-"

var errBodyMissing = errors.New("message body section missing from fetch response")

// ScannedMessage is one fetched and MIME-parsed mailbox message.
type ScannedMessage struct {
	UID      uint32
	Subject  string
	From     string
	BodyText string
}

// Scanner searches the mailbox for approval replies and fetches their bodies.
type Scanner struct {
	lookbackDays int
	log          logger.Logger
}

func NewScanner(cfg *config.MonitorConfig, log logger.Logger) *Scanner {
	return &Scanner{
		lookbackDays: cfg.FullScanLookbackDays,
		log:          log,
	}
}

// BuildCriteria assembles the search criteria for one scan. Incremental scans
// look at unseen messages only; full scans cover the lookback window
// regardless of seen state, recovering messages missed during an outage.
func (s *Scanner) BuildCriteria(fullScan bool, now time.Time) *goimap.SearchCriteria {
	criteria := goimap.NewSearchCriteria()
	criteria.Or = [][2]*goimap.SearchCriteria{{
		subjectCriteria(subjectToken),
		subjectCriteria("Re: " + subjectToken),
	}}

	if fullScan {
		criteria.Since = now.AddDate(0, 0, -s.lookbackDays)
	} else {
		criteria.WithoutFlags = []string{goimap.SeenFlag}
	}

	return criteria
}

func subjectCriteria(value string) *goimap.SearchCriteria {
	c := goimap.NewSearchCriteria()
	c.Header = textproto.MIMEHeader{"Subject": []string{value}}
	return c
}

// Scan searches and fetches matching messages. A fetch or parse failure on
// one message is logged and skipped, the rest of the batch still flows.
func (s *Scanner) Scan(ctx context.Context, conn interfaces.MailboxConn, fullScan bool) ([]ScannedMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Scanner.Scan")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("full_scan", fullScan)

	criteria := s.BuildCriteria(fullScan, time.Now().UTC())

	uids, err := conn.UidSearch(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogFields(tracingLog.Int("matches", len(uids)))

	if len(uids) == 0 {
		return nil, nil
	}
	s.log.Infof("scan matched %d messages (full_scan=%t)", len(uids), fullScan)

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uids...)

	// BODY.PEEK keeps the Seen flag untouched until the marker decides.
	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{
		goimap.FetchEnvelope,
		goimap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *goimap.Message, len(uids))
	if err := conn.UidFetch(seqSet, items, messages); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result := make([]ScannedMessage, 0, len(uids))
	for msg := range messages {
		scanned, err := s.parseMessage(msg, section)
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("failed to parse message uid %d: %v", msg.Uid, err)
			continue
		}
		result = append(result, scanned)
	}

	return result, nil
}

func (s *Scanner) parseMessage(msg *goimap.Message, section *goimap.BodySectionName) (ScannedMessage, error) {
	scanned := ScannedMessage{UID: msg.Uid}

	if msg.Envelope != nil {
		scanned.Subject = msg.Envelope.Subject
		if len(msg.Envelope.From) > 0 {
			scanned.From = msg.Envelope.From[0].Address()
		}
	}

	body := msg.GetBody(section)
	if body == nil {
		return scanned, errBodyMissing
	}

	envelope, err := enmime.ReadEnvelope(body)
	if err != nil {
		return scanned, err
	}

	scanned.BodyText = envelope.Text
	if scanned.Subject == "" {
		scanned.Subject = envelope.GetHeader("Subject")
	}
	if scanned.From == "" {
		scanned.From = envelope.GetHeader("From")
	}

	return scanned, nil
}
