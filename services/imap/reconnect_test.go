package imap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/partsvault/approvalstack/config"
	er "github.com/partsvault/approvalstack/internal/errors"
	"github.com/partsvault/approvalstack/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type stubNetwork struct {
	connected bool
}

func (s *stubNetwork) IsConnected() bool {
	return s.connected
}

func monitorConfig() *config.MonitorConfig {
	return &config.MonitorConfig{
		ReconnectBaseDelay:   1000,
		ReconnectMaxDelay:    30000,
		ReconnectMaxAttempts: 5,
		FullScanLookbackDays: 7,
		ProcessedFolder:      "Processed",
	}
}

func TestReconnect_BackoffIsNonDecreasingAndCapped(t *testing.T) {
	session := NewSession(&failingDialer{}, "INBOX", getLogger())
	supervisor := NewReconnectionSupervisor(session, &stubNetwork{connected: true}, monitorConfig(), getLogger())

	var previous time.Duration
	for attempt := 0; attempt < 10; attempt++ {
		delay := supervisor.NextDelay(attempt)
		assert.GreaterOrEqual(t, delay, previous, "delay for attempt %d decreased", attempt)
		assert.LessOrEqual(t, delay, 30*time.Second, "delay for attempt %d exceeds cap", attempt)
		previous = delay
	}

	assert.Equal(t, time.Second, supervisor.NextDelay(0))
	assert.Equal(t, 2*time.Second, supervisor.NextDelay(1))
	assert.Equal(t, 4*time.Second, supervisor.NextDelay(2))
	assert.Equal(t, 30*time.Second, supervisor.NextDelay(9))
}

func TestReconnect_NoOpWhenNetworkDown(t *testing.T) {
	dialer := &failingDialer{}
	session := NewSession(dialer, "INBOX", getLogger())
	supervisor := NewReconnectionSupervisor(session, &stubNetwork{connected: false}, monitorConfig(), getLogger())

	err := supervisor.Reconnect(context.Background())

	assert.NoError(t, err)
	assert.Zero(t, dialer.calls, "dialer must not be touched while the network is down")
	assert.Zero(t, supervisor.Attempt())
}

func TestReconnect_ExhaustionIsFatal(t *testing.T) {
	cfg := monitorConfig()
	cfg.ReconnectBaseDelay = 1
	cfg.ReconnectMaxDelay = 2
	cfg.ReconnectMaxAttempts = 3

	dialer := &failingDialer{}
	session := NewSession(dialer, "INBOX", getLogger())
	supervisor := NewReconnectionSupervisor(session, &stubNetwork{connected: true}, cfg, getLogger())

	err := supervisor.Reconnect(context.Background())

	assert.ErrorIs(t, err, er.ErrReconnectAttemptsExhausted)
	assert.Equal(t, 3, dialer.calls)
}

func TestReconnect_ResetClearsAttempts(t *testing.T) {
	cfg := monitorConfig()
	cfg.ReconnectBaseDelay = 1
	cfg.ReconnectMaxDelay = 2
	cfg.ReconnectMaxAttempts = 2

	dialer := &failingDialer{}
	session := NewSession(dialer, "INBOX", getLogger())
	supervisor := NewReconnectionSupervisor(session, &stubNetwork{connected: true}, cfg, getLogger())

	_ = supervisor.Reconnect(context.Background())
	assert.Equal(t, 2, supervisor.Attempt())

	supervisor.Reset()
	assert.Zero(t, supervisor.Attempt())
}

func TestReconnect_RetryHandlerFiresOnEveryAttempt(t *testing.T) {
	cfg := monitorConfig()
	cfg.ReconnectBaseDelay = 1
	cfg.ReconnectMaxDelay = 2
	cfg.ReconnectMaxAttempts = 3

	dialer := &failingDialer{}
	session := NewSession(dialer, "INBOX", getLogger())
	supervisor := NewReconnectionSupervisor(session, &stubNetwork{connected: true}, cfg, getLogger())

	retries := 0
	supervisor.SetRetryHandler(func() { retries++ })

	_ = supervisor.Reconnect(context.Background())

	assert.Equal(t, 3, retries)
}
