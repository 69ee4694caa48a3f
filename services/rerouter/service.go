package rerouter

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/partsvault/approvalstack/config"
	"github.com/partsvault/approvalstack/dto"
	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/enum"
	"github.com/partsvault/approvalstack/internal/logger"
	"github.com/partsvault/approvalstack/internal/models"
	"github.com/partsvault/approvalstack/internal/repository"
	"github.com/partsvault/approvalstack/internal/tracing"
	"github.com/partsvault/approvalstack/internal/utils"
)

// Service forwards a notification copy of each approved PO to the configured
// secondary recipient. Everything here is best-effort: a reroute failure is
// logged and never escalates past this package.
type Service struct {
	config       *config.RerouteConfig
	fromAddress  string
	repositories *repository.Repositories
	sender       interfaces.EmailSender
	storage      interfaces.StorageService
	log          logger.Logger
}

func NewService(
	cfg *config.RerouteConfig,
	fromAddress string,
	repos *repository.Repositories,
	sender interfaces.EmailSender,
	storage interfaces.StorageService,
	log logger.Logger,
) *Service {
	return &Service{
		config:       cfg,
		fromAddress:  fromAddress,
		repositories: repos,
		sender:       sender,
		storage:      storage,
		log:          log,
	}
}

// RerouteApprovedPO composes and dispatches the approval notification for one
// PO. No-op when rerouting is disabled. A reroute for a PO already rerouted
// within the cooldown window is skipped, guarding against reply loops.
func (s *Service) RerouteApprovedPO(ctx context.Context, poID uint, trackingCode, approverEmail string) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RerouterService.RerouteApprovedPO")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("po_id", poID)
	span.SetTag("tracking_code", trackingCode)

	if !s.config.Enabled || s.config.Recipient == "" {
		span.LogFields(tracingLog.String("skip", "rerouting disabled"))
		return
	}

	po, err := s.repositories.PurchaseOrderRepository.GetByID(ctx, poID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("reroute: failed to load PO %d: %v", poID, err)
		return
	}
	if po == nil {
		s.log.Warnf("reroute: PO %d not found, skipping", poID)
		return
	}

	latest, err := s.repositories.RerouteLogRepository.GetLatestByPOID(ctx, poID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("reroute: failed to check reroute log for PO %d: %v", poID, err)
		return
	}
	cooldown := time.Duration(s.config.CooldownMinutes) * time.Minute
	if latest != nil && time.Since(latest.SentAt) < cooldown {
		span.LogFields(tracingLog.String("skip", "within cooldown window"))
		s.log.Infof("reroute: PO %d already rerouted at %s, skipping", poID, latest.SentAt)
		return
	}

	email := s.composeNotification(ctx, po, trackingCode, approverEmail)

	status := enum.RerouteStatusSent
	if err := s.sender.Send(ctx, email); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("reroute: failed to send notification for PO %d: %v", poID, err)
		status = enum.RerouteStatusFailed
	}

	entry := &models.RerouteLogEntry{
		POID:                 poID,
		OriginalTrackingCode: trackingCode,
		RecipientEmail:       s.config.Recipient,
		SentAt:               utils.Now(),
		Status:               status,
	}
	if err := s.repositories.RerouteLogRepository.Create(ctx, entry); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("reroute: failed to record reroute log for PO %d: %v", poID, err)
	}
}

func (s *Service) composeNotification(ctx context.Context, po *models.PurchaseOrder, trackingCode, approverEmail string) *dto.OutboundEmail {
	subject := fmt.Sprintf("%s Purchase Order %s approved", s.config.SubjectPrefix, po.PONumber)

	body := fmt.Sprintf(
		"Purchase order %s was approved by %s.\n\nTotal amount: %.2f\nApproval date: %s\n",
		po.PONumber,
		approverEmail,
		utils.GetOrDefault(po.TotalAmount, 0),
		utils.Now().Format(time.RFC1123),
	)

	email := &dto.OutboundEmail{
		From:     s.fromAddress,
		To:       []string{s.config.Recipient},
		Subject:  subject,
		BodyText: body,
	}

	email.Attachment = s.loadDocument(ctx, po, trackingCode)

	return email
}

// loadDocument fetches the stored PO document for the tracking record, when
// one was attached to the original request. Absence is not an error.
func (s *Service) loadDocument(ctx context.Context, po *models.PurchaseOrder, trackingCode string) *dto.EmailAttachment {
	if s.storage == nil {
		return nil
	}

	approval, err := s.repositories.PendingApprovalRepository.GetByTrackingCode(ctx, trackingCode)
	if err != nil || approval == nil || approval.DocumentKey == "" {
		return nil
	}

	data, err := s.storage.Download(ctx, approval.DocumentKey)
	if err != nil {
		s.log.Warnf("reroute: failed to download document %s: %v", approval.DocumentKey, err)
		return nil
	}

	return &dto.EmailAttachment{
		Filename:    fmt.Sprintf("PO-%s.pdf", po.PONumber),
		ContentType: "application/pdf",
		Data:        data,
	}
}
