package imap

import (
	"context"
	"testing"

	goimap "github.com/emersion/go-imap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/partsvault/approvalstack/internal/enum"
)

type recordedApproval struct {
	trackingCode string
	decidedBy    string
	decision     enum.ApprovalDecision
}

type fakeReconciler struct {
	recorded []recordedApproval
	err      error
}

func (f *fakeReconciler) ProcessEmailApproval(ctx context.Context, trackingCode, decidedBy string, decision enum.ApprovalDecision, rawText string) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, recordedApproval{
		trackingCode: trackingCode,
		decidedBy:    decidedBy,
		decision:     decision,
	})
	return nil
}

type monitorFixture struct {
	monitor    *Monitor
	conn       *fakeConn
	reconciler *fakeReconciler
	moved      []uint32
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	f := &monitorFixture{reconciler: &fakeReconciler{}}
	f.conn = &fakeConn{
		moveFn: func(seqset *goimap.SeqSet, dest string) error {
			for _, seq := range seqset.Set {
				f.moved = append(f.moved, seq.Start)
			}
			return nil
		},
	}

	log := getLogger()
	cfg := monitorConfig()
	session := NewSession(&fakeDialer{conns: []*fakeConn{f.conn}}, "INBOX", log)
	assert.NoError(t, session.Connect(context.Background()))

	reconnect := NewReconnectionSupervisor(session, &stubNetwork{connected: true}, cfg, log)
	f.monitor = NewMonitor(session, reconnect, NewScanner(cfg, log), NewMarker(cfg.ProcessedFolder, log), f.reconciler, log)
	return f
}

func TestProcessMessage_ApprovedIsReconciledAndMarked(t *testing.T) {
	f := newMonitorFixture(t)

	f.monitor.processMessage(context.Background(), f.conn, ScannedMessage{
		UID:      42,
		Subject:  "RE: Purchase Order #202503-0001 - [PO-APPROVAL-abc123]",
		From:     "john.doe@acme.com",
		BodyText: "Approved, thanks",
	})

	assert.Equal(t, []recordedApproval{{
		trackingCode: "abc123",
		decidedBy:    "john.doe@acme.com",
		decision:     enum.DecisionApproved,
	}}, f.reconciler.recorded)
	assert.Equal(t, []uint32{42}, f.moved)
	assert.Equal(t, int64(1), f.monitor.Status().Processed)
}

func TestProcessMessage_UnknownDecisionIsCountedAndMarked(t *testing.T) {
	f := newMonitorFixture(t)

	f.monitor.processMessage(context.Background(), f.conn, ScannedMessage{
		UID:      43,
		Subject:  "RE: [PO-APPROVAL-abc123]",
		From:     "john.doe@acme.com",
		BodyText: "Who is the supplier on this one?",
	})

	assert.Empty(t, f.reconciler.recorded, "unknown replies never reach the reconciler")
	assert.Equal(t, []uint32{43}, f.moved, "unknown replies are still marked so they never rescan")
	assert.Equal(t, int64(1), f.monitor.Status().Unknown)
}

func TestProcessMessage_NoTrackingCodeIsMarkedOnly(t *testing.T) {
	f := newMonitorFixture(t)

	f.monitor.processMessage(context.Background(), f.conn, ScannedMessage{
		UID:      44,
		Subject:  "Weekly newsletter",
		From:     "news@vendor.com",
		BodyText: "Approved deals inside!",
	})

	assert.Empty(t, f.reconciler.recorded)
	assert.Equal(t, []uint32{44}, f.moved)
	assert.Zero(t, f.monitor.Status().Processed)
	assert.Zero(t, f.monitor.Status().Unknown)
}

func TestProcessMessage_ReconcileFailureLeavesUnmarked(t *testing.T) {
	f := newMonitorFixture(t)
	f.reconciler.err = errors.New("deadlock detected")

	f.monitor.processMessage(context.Background(), f.conn, ScannedMessage{
		UID:      45,
		Subject:  "RE: [PO-APPROVAL-abc123]",
		From:     "john.doe@acme.com",
		BodyText: "Approved",
	})

	assert.Empty(t, f.moved, "a failed reconciliation must leave the message for the next scan")
	assert.Equal(t, int64(1), f.monitor.Status().Failed)
	assert.Equal(t, "deadlock detected", f.monitor.Status().LastError)
}

func TestTriggerScan_CoalescesPendingTriggers(t *testing.T) {
	f := newMonitorFixture(t)

	f.monitor.TriggerScan()
	f.monitor.TriggerScan()
	f.monitor.TriggerScan()

	assert.Len(t, f.monitor.scanTrigger, 1, "pending triggers must coalesce into one")
}

func TestTriggerFullScan_SetsFlagConsumedByNextScan(t *testing.T) {
	f := newMonitorFixture(t)

	f.monitor.TriggerFullScan()

	assert.True(t, f.monitor.fullScan.Load())
	assert.Len(t, f.monitor.scanTrigger, 1)
}

func TestRunScan_FullScanFlagSurvivesScanFailure(t *testing.T) {
	f := newMonitorFixture(t)
	f.conn.searchFn = func(criteria *goimap.SearchCriteria) ([]uint32, error) {
		return nil, errors.New("BAD search rejected")
	}

	f.monitor.TriggerFullScan()
	err := f.monitor.runScan(context.Background())

	assert.Error(t, err)
	assert.True(t, f.monitor.fullScan.Load(), "a failed full scan must stay a full scan on retry")
}

func TestRunScan_ConsumesFullScanFlagOnSuccess(t *testing.T) {
	f := newMonitorFixture(t)
	var sawSince bool
	f.conn.searchFn = func(criteria *goimap.SearchCriteria) ([]uint32, error) {
		sawSince = !criteria.Since.IsZero()
		return nil, nil
	}

	f.monitor.TriggerFullScan()
	assert.NoError(t, f.monitor.runScan(context.Background()))

	assert.True(t, sawSince, "full scan must search the lookback window")
	assert.False(t, f.monitor.fullScan.Load())

	sawSince = false
	assert.NoError(t, f.monitor.runScan(context.Background()))
	assert.True(t, f.monitor.Status().Connected)
	assert.False(t, sawSince, "follow-up scans are incremental again")
}

func TestRetryHandler_SchedulesFullScanAfterReconnect(t *testing.T) {
	f := newMonitorFixture(t)

	assert.False(t, f.monitor.fullScan.Load())
	f.monitor.reconnect.onRetry()
	assert.True(t, f.monitor.fullScan.Load())
}

func TestStatus_ReflectsSessionState(t *testing.T) {
	f := newMonitorFixture(t)

	status := f.monitor.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, enum.SessionAuthenticated, status.SessionState)

	f.monitor.session.Close()
	status = f.monitor.Status()
	assert.False(t, status.Connected)
	assert.Equal(t, enum.SessionDisconnected, status.SessionState)
}
