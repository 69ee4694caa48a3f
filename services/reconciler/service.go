package reconciler

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/partsvault/approvalstack/dto"
	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/enum"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/repository"
	"github.com/partsvault/approvalstack/internal/tracing"
	"github.com/partsvault/approvalstack/internal/utils"
)

// Rerouter forwards an approved PO notification. Implemented by the rerouter
// service; substituted with a double in tests.
type Rerouter interface {
	RerouteApprovedPO(ctx context.Context, poID uint, trackingCode, approverEmail string)
}

// Service applies classified decisions to the tracking record and its linked
// purchase order. The store write is transactional; event emission and
// rerouting happen after commit and never roll it back.
type Service struct {
	repositories        *repository.Repositories
	publisher           interfaces.EventPublisher
	rerouter            Rerouter
	authorizedApprovers []string
	log                 logger.Logger
}

func NewService(
	repos *repository.Repositories,
	publisher interfaces.EventPublisher,
	rerouter Rerouter,
	authorizedApprovers []string,
	log logger.Logger,
) *Service {
	return &Service{
		repositories:        repos,
		publisher:           publisher,
		rerouter:            rerouter,
		authorizedApprovers: authorizedApprovers,
		log:                 log,
	}
}

// ProcessEmailApproval reconciles one classified reply. Unknown tracking
// codes and already-decided approvals are logged no-ops. Store errors
// propagate so the caller leaves the message unmarked for retry.
func (s *Service) ProcessEmailApproval(ctx context.Context, trackingCode, decidedBy string, decision enum.ApprovalDecision, rawText string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReconcilerService.ProcessEmailApproval")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("tracking_code", trackingCode)
	span.SetTag("decision", decision.String())

	approval, err := s.repositories.PendingApprovalRepository.GetByTrackingCode(ctx, trackingCode)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if approval == nil {
		span.LogFields(tracingLog.String("skip", "tracking code not found"))
		s.log.Warnf("no tracking record for code %s, ignoring reply", trackingCode)
		return nil
	}

	if approval.Status.IsTerminal() {
		span.LogFields(tracingLog.String("skip", "already decided"))
		s.log.Infof("approval %s already %s, ignoring repeated reply from %s",
			trackingCode, approval.Status, decidedBy)
		return nil
	}

	if !s.isAuthorized(decidedBy) {
		span.LogFields(tracingLog.String("skip", "approver not authorized"))
		s.log.Warnf("reply from unauthorized sender %s for code %s, ignoring", decidedBy, trackingCode)
		return nil
	}

	update := &dto.DecisionUpdate{
		TrackingCode:    trackingCode,
		POID:            approval.POID,
		DecidedBy:       decidedBy,
		RawDecisionText: rawText,
		DecidedAt:       utils.Now(),
	}

	switch decision {
	case enum.DecisionApproved:
		update.ApprovalStatus = enum.ApprovalStatusApproved
		update.POStatus = enum.POStatusApproved
	case enum.DecisionOnHold:
		update.ApprovalStatus = enum.ApprovalStatusOnHold
		update.POStatus = enum.POStatusPending
	default:
		span.LogFields(tracingLog.String("skip", "unknown decision"))
		return nil
	}

	if err := s.repositories.ApprovalStore.RecordDecision(ctx, update); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	s.log.Infof("approval %s decided %s by %s (po %d)",
		trackingCode, update.ApprovalStatus, decidedBy, approval.POID)

	s.publishStatusChanged(ctx, update)

	if decision == enum.DecisionApproved {
		s.rerouter.RerouteApprovedPO(ctx, approval.POID, trackingCode, decidedBy)
	}

	return nil
}

// publishStatusChanged is fire-and-forget; a broken broker never blocks
// reconciliation.
func (s *Service) publishStatusChanged(ctx context.Context, update *dto.DecisionUpdate) {
	if s.publisher == nil {
		return
	}

	event := dto.ApprovalStatusChanged{
		POID:           update.POID,
		Status:         update.POStatus,
		ApprovalStatus: update.ApprovalStatus,
		TrackingCode:   update.TrackingCode,
		DecidedBy:      update.DecidedBy,
	}
	if err := s.publisher.PublishApprovalStatusChanged(ctx, event); err != nil {
		s.log.Errorf("failed to publish status change for po %d: %v", update.POID, err)
	}
}

// isAuthorized checks the sender against the configured approver allowlist.
// An empty allowlist accepts any sender.
func (s *Service) isAuthorized(sender string) bool {
	if len(s.authorizedApprovers) == 0 {
		return true
	}
	sender = strings.ToLower(strings.TrimSpace(sender))
	for _, approver := range s.authorizedApprovers {
		if strings.ToLower(strings.TrimSpace(approver)) == sender {
			return true
		}
	}
	return false
}
