package enum

// SessionState is the lifecycle state of the IMAP mailbox session.
type SessionState string

const (
	SessionDisconnected  SessionState = "disconnected"
	SessionConnecting    SessionState = "connecting"
	SessionConnected     SessionState = "connected"
	SessionAuthenticated SessionState = "authenticated"
)

func (t SessionState) String() string {
	return string(t)
}

type EmailSecurity string

const (
	EmailSecurityNone     EmailSecurity = "none"
	EmailSecurityTLS      EmailSecurity = "tls"
	EmailSecurityStartTLS EmailSecurity = "startTLS"
)

func (t EmailSecurity) String() string {
	return string(t)
}

type RerouteStatus string

const (
	RerouteStatusSent   RerouteStatus = "sent"
	RerouteStatusFailed RerouteStatus = "failed"
)

func (t RerouteStatus) String() string {
	return string(t)
}
