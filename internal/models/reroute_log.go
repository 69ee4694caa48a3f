package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/partsvault/approvalstack/internal/enum"
)

// RerouteLogEntry records one forwarded approval notification. At most one
// entry is written per successful reroute attempt.
type RerouteLogEntry struct {
	ID                   uint               `gorm:"column:id;primaryKey;autoIncrement"`
	POID                 uint               `gorm:"column:po_id;index;not null"`
	OriginalTrackingCode string             `gorm:"column:original_tracking_code;type:varchar(64);not null"`
	RecipientEmail       string             `gorm:"column:recipient_email;type:varchar(255);not null"`
	SentAt               time.Time          `gorm:"column:sent_at;type:timestamp;not null"`
	Status               enum.RerouteStatus `gorm:"column:status;type:varchar(50);not null;default:sent"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (RerouteLogEntry) TableName() string {
	return "email_rerouting_log"
}
