package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/partsvault/approvalstack/internal/enum"
	"github.com/partsvault/approvalstack/internal/utils"
)

// PendingApproval is one outbound approval request awaiting a reply,
// correlated by its tracking code. Created when the request email is sent;
// mutated only by the reconciler.
type PendingApproval struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey"`
	TrackingCode string `gorm:"column:tracking_code;type:varchar(64);uniqueIndex;not null"`
	POID         uint   `gorm:"column:po_id;index;not null"`

	RecipientEmail string         `gorm:"column:recipient_email;type:varchar(255);not null"`
	CcRecipients   pq.StringArray `gorm:"column:cc_recipients;type:text[]"`
	EmailSubject   string         `gorm:"column:email_subject;type:varchar(1000)"`

	Status enum.ApprovalStatus `gorm:"column:status;type:varchar(20);index;default:pending"`

	// DocumentKey is the object storage key of the PO document attached to the
	// original request, reused when the approval is rerouted.
	DocumentKey string `gorm:"column:document_key;type:varchar(512)"`

	SentAt          *time.Time `gorm:"column:sent_at;type:timestamp;index"`
	DecidedAt       *time.Time `gorm:"column:decided_at;type:timestamp"`
	DecidedBy       string     `gorm:"column:decided_by;type:varchar(255)"`
	RawDecisionText string     `gorm:"column:raw_decision_text;type:text"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (PendingApproval) TableName() string {
	return "po_email_tracking"
}

func (p *PendingApproval) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = utils.GenerateNanoIdWithPrefix("appr", 24)
	}
	if p.TrackingCode == "" {
		p.TrackingCode = utils.GenerateTrackingCode()
	}
	p.CreatedAt = utils.Now()
	return nil
}
