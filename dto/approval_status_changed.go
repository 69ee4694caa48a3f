package dto

import "github.com/partsvault/approvalstack/internal/enum"

// ApprovalStatusChanged is broadcast whenever a pending approval reaches a
// decision. Consumers (UI push, dashboards) treat it as a refresh hint.
type ApprovalStatusChanged struct {
	POID           uint                `json:"poId"`
	Status         enum.POStatus       `json:"status"`
	ApprovalStatus enum.ApprovalStatus `json:"approvalStatus"`
	TrackingCode   string              `json:"trackingCode"`
	DecidedBy      string              `json:"decidedBy"`
}
