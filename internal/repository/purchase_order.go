package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/partsvault/approvalstack/interfaces"
	"github.com/partsvault/approvalstack/internal/models"
	"github.com/partsvault/approvalstack/internal/tracing"
)

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) interfaces.PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

// GetByID returns nil, nil when no purchase order matches.
func (r *purchaseOrderRepository) GetByID(ctx context.Context, poID uint) (*models.PurchaseOrder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "purchaseOrderRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var po models.PurchaseOrder
	result := r.db.WithContext(ctx).
		Where("po_id = ?", poID).
		First(&po)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get purchase order: %w", result.Error)
	}

	return &po, nil
}
