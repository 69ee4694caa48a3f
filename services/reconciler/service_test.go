package reconciler

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/partsvault/approvalstack/dto"
	"github.com/partsvault/approvalstack/internal/enum"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/models"
	"github.com/partsvault/approvalstack/internal/repository"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeApprovalRepo struct {
	approvals map[string]*models.PendingApproval
	err       error
}

func (f *fakeApprovalRepo) Create(ctx context.Context, approval *models.PendingApproval) error {
	return nil
}

func (f *fakeApprovalRepo) GetByTrackingCode(ctx context.Context, trackingCode string) (*models.PendingApproval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.approvals[trackingCode], nil
}

func (f *fakeApprovalRepo) ListByPOID(ctx context.Context, poID uint) ([]models.PendingApproval, error) {
	return nil, nil
}

type fakeApprovalStore struct {
	updates []*dto.DecisionUpdate
	err     error
}

func (f *fakeApprovalStore) RecordDecision(ctx context.Context, update *dto.DecisionUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, update)
	return nil
}

type fakePublisher struct {
	events []dto.ApprovalStatusChanged
	err    error
}

func (f *fakePublisher) PublishApprovalStatusChanged(ctx context.Context, event dto.ApprovalStatusChanged) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeRerouter struct {
	calls []string
}

func (f *fakeRerouter) RerouteApprovedPO(ctx context.Context, poID uint, trackingCode, approverEmail string) {
	f.calls = append(f.calls, trackingCode)
}

type reconcilerFixture struct {
	service   *Service
	approvals *fakeApprovalRepo
	store     *fakeApprovalStore
	publisher *fakePublisher
	rerouter  *fakeRerouter
}

func newFixture(approvers []string, approvals ...*models.PendingApproval) *reconcilerFixture {
	repo := &fakeApprovalRepo{approvals: map[string]*models.PendingApproval{}}
	for _, a := range approvals {
		repo.approvals[a.TrackingCode] = a
	}
	store := &fakeApprovalStore{}
	publisher := &fakePublisher{}
	rerouter := &fakeRerouter{}
	repos := &repository.Repositories{
		PendingApprovalRepository: repo,
		ApprovalStore:             store,
	}
	return &reconcilerFixture{
		service:   NewService(repos, publisher, rerouter, approvers, getLogger()),
		approvals: repo,
		store:     store,
		publisher: publisher,
		rerouter:  rerouter,
	}
}

func pendingApproval(code string) *models.PendingApproval {
	return &models.PendingApproval{
		ID:           "appr_" + code,
		TrackingCode: code,
		POID:         101,
		Status:       enum.ApprovalStatusPending,
	}
}

func TestProcessEmailApproval_Approved(t *testing.T) {
	f := newFixture(nil, pendingApproval("abc123"))

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "john.doe@acme.com", enum.DecisionApproved, "Approved, thanks")

	assert.NoError(t, err)
	assert.Len(t, f.store.updates, 1)
	update := f.store.updates[0]
	assert.Equal(t, enum.ApprovalStatusApproved, update.ApprovalStatus)
	assert.Equal(t, enum.POStatusApproved, update.POStatus)
	assert.Equal(t, uint(101), update.POID)
	assert.Equal(t, "john.doe@acme.com", update.DecidedBy)
	assert.Equal(t, "Approved, thanks", update.RawDecisionText)
	assert.False(t, update.DecidedAt.IsZero())

	assert.Len(t, f.publisher.events, 1)
	assert.Equal(t, enum.POStatusApproved, f.publisher.events[0].Status)
	assert.Equal(t, []string{"abc123"}, f.rerouter.calls)
}

func TestProcessEmailApproval_OnHold(t *testing.T) {
	f := newFixture(nil, pendingApproval("abc123"))

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "john.doe@acme.com", enum.DecisionOnHold, "On hold")

	assert.NoError(t, err)
	assert.Len(t, f.store.updates, 1)
	assert.Equal(t, enum.ApprovalStatusOnHold, f.store.updates[0].ApprovalStatus)
	assert.Equal(t, enum.POStatusPending, f.store.updates[0].POStatus, "a hold keeps the purchase order pending")
	assert.Empty(t, f.rerouter.calls, "holds are never rerouted")
}

func TestProcessEmailApproval_UnknownTrackingCodeIsNoOp(t *testing.T) {
	f := newFixture(nil)

	err := f.service.ProcessEmailApproval(context.Background(), "missing", "john.doe@acme.com", enum.DecisionApproved, "Approved")

	assert.NoError(t, err)
	assert.Empty(t, f.store.updates)
	assert.Empty(t, f.publisher.events)
	assert.Empty(t, f.rerouter.calls)
}

func TestProcessEmailApproval_TerminalStatusIsIdempotent(t *testing.T) {
	decided := pendingApproval("abc123")
	decided.Status = enum.ApprovalStatusApproved
	f := newFixture(nil, decided)

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "jane.roe@acme.com", enum.DecisionOnHold, "On hold")

	assert.NoError(t, err)
	assert.Empty(t, f.store.updates, "a decided approval must never change again")
	assert.Empty(t, f.rerouter.calls, "a repeated reply must never trigger a second reroute")
}

func TestProcessEmailApproval_UnknownDecisionIsNoOp(t *testing.T) {
	f := newFixture(nil, pendingApproval("abc123"))

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "john.doe@acme.com", enum.DecisionUnknown, "Who is the supplier?")

	assert.NoError(t, err)
	assert.Empty(t, f.store.updates)
	assert.Empty(t, f.publisher.events)
	assert.Empty(t, f.rerouter.calls)
}

func TestProcessEmailApproval_UnauthorizedSenderIsIgnored(t *testing.T) {
	f := newFixture([]string{"cfo@acme.com", "Procurement@Acme.com"}, pendingApproval("abc123"))

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "intern@acme.com", enum.DecisionApproved, "Approved")

	assert.NoError(t, err)
	assert.Empty(t, f.store.updates)
	assert.Empty(t, f.rerouter.calls)
}

func TestProcessEmailApproval_AllowlistIsCaseInsensitive(t *testing.T) {
	f := newFixture([]string{"Procurement@Acme.com"}, pendingApproval("abc123"))

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "procurement@acme.com", enum.DecisionApproved, "Approved")

	assert.NoError(t, err)
	assert.Len(t, f.store.updates, 1)
}

func TestProcessEmailApproval_StoreErrorPropagates(t *testing.T) {
	f := newFixture(nil, pendingApproval("abc123"))
	f.store.err = errors.New("deadlock detected")

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "john.doe@acme.com", enum.DecisionApproved, "Approved")

	assert.Error(t, err)
	assert.Empty(t, f.publisher.events, "nothing is published when the store write fails")
	assert.Empty(t, f.rerouter.calls)
}

func TestProcessEmailApproval_RepositoryErrorPropagates(t *testing.T) {
	f := newFixture(nil)
	f.approvals.err = errors.New("connection refused")

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "john.doe@acme.com", enum.DecisionApproved, "Approved")

	assert.Error(t, err)
}

func TestProcessEmailApproval_PublisherFailureDoesNotFail(t *testing.T) {
	f := newFixture(nil, pendingApproval("abc123"))
	f.publisher.err = errors.New("channel closed")

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "john.doe@acme.com", enum.DecisionApproved, "Approved")

	assert.NoError(t, err)
	assert.Len(t, f.store.updates, 1)
	assert.Equal(t, []string{"abc123"}, f.rerouter.calls, "a broken broker must not block the reroute")
}

func TestProcessEmailApproval_NilPublisher(t *testing.T) {
	f := newFixture(nil, pendingApproval("abc123"))
	f.service.publisher = nil

	err := f.service.ProcessEmailApproval(context.Background(), "abc123", "john.doe@acme.com", enum.DecisionApproved, "Approved")

	assert.NoError(t, err)
	assert.Len(t, f.store.updates, 1)
}
