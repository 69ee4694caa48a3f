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

type rerouteLogRepository struct {
	db *gorm.DB
}

func NewRerouteLogRepository(db *gorm.DB) interfaces.RerouteLogRepository {
	return &rerouteLogRepository{db: db}
}

func (r *rerouteLogRepository) Create(ctx context.Context, entry *models.RerouteLogEntry) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rerouteLogRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if entry.SentAt.IsZero() {
		entry.SentAt = utils.Now()
	}

	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to create reroute log entry: %w", result.Error)
	}

	return nil
}

// GetLatestByPOID returns nil, nil when the PO has never been rerouted.
func (r *rerouteLogRepository) GetLatestByPOID(ctx context.Context, poID uint) (*models.RerouteLogEntry, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "rerouteLogRepository.GetLatestByPOID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var entry models.RerouteLogEntry
	result := r.db.WithContext(ctx).
		Where("po_id = ?", poID).
		Order("sent_at DESC").
		First(&entry)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get reroute log entry: %w", result.Error)
	}

	return &entry, nil
}
