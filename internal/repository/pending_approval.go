package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/models"
	"github.com/partsvault/approvalstack/internal/tracing"
	"github.com/partsvault/approvalstack/internal/utils"
)

type pendingApprovalRepository struct {
	db *gorm.DB
}

func NewPendingApprovalRepository(db *gorm.DB) interfaces.PendingApprovalRepository {
	return &pendingApprovalRepository{db: db}
}

func (r *pendingApprovalRepository) Create(ctx context.Context, approval *models.PendingApproval) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingApprovalRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if approval.SentAt == nil {
		approval.SentAt = utils.NowPtr()
	}

	result := r.db.WithContext(ctx).Create(approval)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to create tracking record: %w", result.Error)
	}

	return nil
}

// GetByTrackingCode returns nil, nil when no record matches.
func (r *pendingApprovalRepository) GetByTrackingCode(ctx context.Context, trackingCode string) (*models.PendingApproval, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingApprovalRepository.GetByTrackingCode")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var approval models.PendingApproval
	result := r.db.WithContext(ctx).
		Where("tracking_code = ?", trackingCode).
		First(&approval)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get tracking record: %w", result.Error)
	}

	return &approval, nil
}

func (r *pendingApprovalRepository) ListByPOID(ctx context.Context, poID uint) ([]models.PendingApproval, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingApprovalRepository.ListByPOID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var approvals []models.PendingApproval
	result := r.db.WithContext(ctx).
		Where("po_id = ?", poID).
		Order("sent_at DESC").
		Find(&approvals)

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to list tracking records: %w", result.Error)
	}

	return approvals, nil
}
