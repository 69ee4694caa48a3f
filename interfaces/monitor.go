package interfaces

import (
	"context"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/partsvault/approvalstack/internal/enum"
)

// MonitorService is the top-level mailbox monitor. Run blocks until the
// context is cancelled or reconnection attempts are exhausted.
type MonitorService interface {
	Run(ctx context.Context) error
	TriggerScan()
	TriggerFullScan()
	Status() MonitorStatus
}

type MonitorStatus struct {
	Connected        bool              `json:"connected"`
	SessionState     enum.SessionState `json:"sessionState"`
	LastError        string            `json:"lastError,omitempty"`
	ReconnectAttempt int               `json:"reconnectAttempt"`
	LastScanAt       time.Time         `json:"lastScanAt"`
	Processed        int64             `json:"processed"`
	Unknown          int64             `json:"unknown"`
	Failed           int64             `json:"failed"`
}

// MailboxConn is the subset of IMAP client operations the monitor uses,
// extracted so the session, scanner and marker can run against test doubles.
type MailboxConn interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidMove(seqset *imap.SeqSet, dest string) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	List(ref, name string, ch chan *imap.MailboxInfo) error
	Create(name string) error
	Noop() error
	Logout() error
	SetTimeout(d time.Duration)
	Support(capability string) (bool, error)
	SetUpdates(ch chan client.Update)
	Idle(stop <-chan struct{}, opts *client.IdleOptions) error
}

// MailboxDialer establishes an authenticated mailbox connection.
type MailboxDialer interface {
	Dial(ctx context.Context) (MailboxConn, error)
}
