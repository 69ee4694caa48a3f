package interfaces

import (
	"context"

	"github.com/partsvault/approvalstack/dto"
	"github.com/partsvault/approvalstack/internal/models"
)

type PendingApprovalRepository interface {
	Create(ctx context.Context, approval *models.PendingApproval) error
	GetByTrackingCode(ctx context.Context, trackingCode string) (*models.PendingApproval, error)
	ListByPOID(ctx context.Context, poID uint) ([]models.PendingApproval, error)
}

type PurchaseOrderRepository interface {
	GetByID(ctx context.Context, poID uint) (*models.PurchaseOrder, error)
}

type RerouteLogRepository interface {
	Create(ctx context.Context, entry *models.RerouteLogEntry) error
	GetLatestByPOID(ctx context.Context, poID uint) (*models.RerouteLogEntry, error)
}

// ApprovalStore applies a decided approval to both the tracking record and the
// linked purchase order in a single transaction, so the PO approval status
// always mirrors the most recent decision.
type ApprovalStore interface {
	RecordDecision(ctx context.Context, update *dto.DecisionUpdate) error
}
