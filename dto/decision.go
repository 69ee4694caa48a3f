package dto

import (
	"time"

	"github.com/partsvault/approvalstack/internal/enum"
)

// DecisionUpdate carries everything the store needs to apply one decided
// approval atomically across the tracking record and the purchase order.
type DecisionUpdate struct {
	TrackingCode    string
	POID            uint
	ApprovalStatus  enum.ApprovalStatus
	POStatus        enum.POStatus
	DecidedBy       string
	RawDecisionText string
	DecidedAt       time.Time
}
