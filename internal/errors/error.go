package errors

import "github.com/pkg/errors"

var (
	// connectivity errors
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrNoNetwork         = errors.New("network is unreachable")

	// session errors
	ErrSessionNotAuthenticated    = errors.New("mailbox session is not authenticated")
	ErrReconnectAttemptsExhausted = errors.New("reconnect attempts exhausted")
)
