package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/partsvault/approvalstack/internal/enum"
)

// PurchaseOrder is owned by the ordering system; this service writes only the
// approval fields and never touches line items or totals.
type PurchaseOrder struct {
	POID        uint     `gorm:"column:po_id;primaryKey;autoIncrement"`
	PONumber    string   `gorm:"column:po_number;type:varchar(50);uniqueIndex"`
	TotalAmount *float64 `gorm:"column:total_amount;type:numeric(12,2)"`

	Status         enum.POStatus       `gorm:"column:status;type:varchar(20);index"`
	ApprovalStatus enum.ApprovalStatus `gorm:"column:approval_status;type:varchar(20);index"`
	ApprovalDate   *time.Time          `gorm:"column:approval_date;type:timestamp"`
	ApprovedBy     string              `gorm:"column:approved_by;type:varchar(255)"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}
