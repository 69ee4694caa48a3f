package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/partsvault/approvalstack/config"
	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/enum"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
)

const (
	connectTimeout = 30 * time.Second
	loginTimeout   = 30 * time.Second
)

// Dialer establishes authenticated IMAP connections from the mailbox config.
type Dialer struct {
	config *config.IMAPConfig
	log    logger.Logger
}

func NewDialer(cfg *config.IMAPConfig, log logger.Logger) *Dialer {
	return &Dialer{
		config: cfg,
		log:    log,
	}
}

// Dial connects to the IMAP server, verifies capabilities and logs in.
func (d *Dialer) Dial(ctx context.Context) (interfaces.MailboxConn, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Dialer.Dial")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("server", d.config.Server)
	span.SetTag("port", d.config.Port)
	span.SetTag("security", d.config.Security)

	serverAddr := fmt.Sprintf("%s:%d", d.config.Server, d.config.Port)

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error

	switch enum.EmailSecurity(d.config.Security) {
	case enum.EmailSecurityTLS:
		tlsConfig := &tls.Config{
			ServerName: d.config.Server,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	default:
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}

	caps, err := c.Capability()
	if err != nil {
		_ = c.Logout()
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}
	span.SetTag("server.capabilities", fmt.Sprintf("%v", caps))

	loginSpan := opentracing.StartSpan(
		"Dialer.login",
		opentracing.ChildOf(span.Context()),
	)
	loginSpan.SetTag("username", d.config.Username)

	c.Timeout = loginTimeout
	err = c.Login(d.config.Username, d.config.Password)
	if err != nil {
		_ = c.Logout()
		tracing.TraceErr(loginSpan, err)
		loginSpan.Finish()
		return nil, fmt.Errorf("failed to login as %s: %w", d.config.Username, err)
	}
	loginSpan.Finish()

	// No timeout for normal operations
	c.Timeout = 0

	d.log.Infof("connected and logged in to %s", serverAddr)

	return &mailboxConn{client: c}, nil
}

// mailboxConn adapts the emersion client to interfaces.MailboxConn.
type mailboxConn struct {
	client *client.Client
}

func (c *mailboxConn) Select(name string, readOnly bool) (*goimap.MailboxStatus, error) {
	return c.client.Select(name, readOnly)
}

func (c *mailboxConn) UidSearch(criteria *goimap.SearchCriteria) ([]uint32, error) {
	return c.client.UidSearch(criteria)
}

func (c *mailboxConn) UidFetch(seqset *goimap.SeqSet, items []goimap.FetchItem, ch chan *goimap.Message) error {
	return c.client.UidFetch(seqset, items, ch)
}

func (c *mailboxConn) UidMove(seqset *goimap.SeqSet, dest string) error {
	return c.client.UidMove(seqset, dest)
}

func (c *mailboxConn) UidStore(seqset *goimap.SeqSet, item goimap.StoreItem, value interface{}, ch chan *goimap.Message) error {
	return c.client.UidStore(seqset, item, value, ch)
}

func (c *mailboxConn) List(ref, name string, ch chan *goimap.MailboxInfo) error {
	return c.client.List(ref, name, ch)
}

func (c *mailboxConn) Create(name string) error {
	return c.client.Create(name)
}

func (c *mailboxConn) Noop() error {
	return c.client.Noop()
}

func (c *mailboxConn) Logout() error {
	return c.client.Logout()
}

func (c *mailboxConn) SetTimeout(d time.Duration) {
	c.client.Timeout = d
}

func (c *mailboxConn) Support(capability string) (bool, error) {
	return c.client.Support(capability)
}

func (c *mailboxConn) SetUpdates(ch chan client.Update) {
	c.client.Updates = ch
}

func (c *mailboxConn) Idle(stop <-chan struct{}, opts *client.IdleOptions) error {
	return c.client.Idle(stop, opts)
}
