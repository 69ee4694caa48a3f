package connectivity

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/tracing"
)

// Dialer probes a single address. Swapped for a stub in tests.
type Dialer func(network, address string, timeout time.Duration) (net.Conn, error)

// State is the process-local connectivity snapshot.
type State struct {
	IsConnected    bool
	LastCheckedAt  time.Time
	DisconnectedAt time.Time
}

// Monitor probes network reachability of the mailbox server on a fixed
// interval. On a disconnected to connected transition it invokes the restore
// callback so the mailbox session reconnects and schedules a full scan.
type Monitor struct {
	address      string
	probeTimeout time.Duration
	dial         Dialer
	log          logger.Logger

	mu    sync.Mutex
	state State

	onRestored func(downtime time.Duration)
}

func NewMonitor(host string, port int, log logger.Logger) *Monitor {
	return &Monitor{
		address:      net.JoinHostPort(host, strconv.Itoa(port)),
		probeTimeout: 10 * time.Second,
		dial:         net.DialTimeout,
		log:          log,
		state: State{
			IsConnected: true,
		},
	}
}

// SetRestoredHandler registers the callback fired on reconnect transitions.
// Must be called before the first Check.
func (m *Monitor) SetRestoredHandler(handler func(downtime time.Duration)) {
	m.onRestored = handler
}

// SetDialer overrides the probe dialer, used by tests.
func (m *Monitor) SetDialer(dial Dialer) {
	m.dial = dial
}

// Check probes the mailbox server and updates the connectivity state. A failed
// probe yields false; no error escapes.
func (m *Monitor) Check(ctx context.Context) bool {
	span, _ := tracing.StartTracerSpan(ctx, "ConnectivityMonitor.Check")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("address", m.address)

	conn, err := m.dial("tcp", m.address, m.probeTimeout)
	reachable := err == nil
	if conn != nil {
		_ = conn.Close()
	}
	span.SetTag("reachable", reachable)

	m.mu.Lock()
	wasConnected := m.state.IsConnected
	now := time.Now().UTC()
	m.state.IsConnected = reachable
	m.state.LastCheckedAt = now
	if wasConnected && !reachable {
		m.state.DisconnectedAt = now
	}
	disconnectedAt := m.state.DisconnectedAt
	m.mu.Unlock()

	switch {
	case wasConnected && !reachable:
		m.log.Warnf("network unreachable: %v", err)
		span.LogFields(tracingLog.String("transition", "disconnected"))
	case !wasConnected && reachable:
		downtime := now.Sub(disconnectedAt)
		m.log.Infof("network restored after %s", downtime)
		span.LogFields(tracingLog.String("transition", "connected"))
		if m.onRestored != nil {
			m.onRestored(downtime)
		}
	}

	return reachable
}

// IsConnected reports the last observed connectivity state without probing.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsConnected
}

// Snapshot returns a copy of the current connectivity state.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
