package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/partsvault/approvalstack/dto"
	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/models"
	"github.com/partsvault/approvalstack/internal/tracing"
)

type approvalStore struct {
	db *gorm.DB
}

func NewApprovalStore(db *gorm.DB) interfaces.ApprovalStore {
	return &approvalStore{db: db}
}

// RecordDecision updates the tracking record and the linked purchase order in
// one transaction. Either both rows reflect the decision or neither does; a
// concurrent writer on the PO row sees a consistent pair afterwards.
func (s *approvalStore) RecordDecision(ctx context.Context, update *dto.DecisionUpdate) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "approvalStore.RecordDecision")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("tracking_code", update.TrackingCode)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PendingApproval{}).
			Where("tracking_code = ?", update.TrackingCode).
			Updates(map[string]interface{}{
				"status":            update.ApprovalStatus,
				"decided_at":        update.DecidedAt,
				"decided_by":        update.DecidedBy,
				"raw_decision_text": update.RawDecisionText,
				"updated_at":        update.DecidedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		result = tx.Model(&models.PurchaseOrder{}).
			Where("po_id = ?", update.POID).
			Updates(map[string]interface{}{
				"status":          update.POStatus,
				"approval_status": update.ApprovalStatus,
				"approval_date":   update.DecidedAt,
				"approved_by":     update.DecidedBy,
				"updated_at":      update.DecidedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to record decision for %s: %w", update.TrackingCode, err)
	}

	return nil
}
