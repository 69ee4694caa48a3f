package interfaces

import (
	"context"

	"github.com/partsvault/approvalstack/dto"
)

// EventPublisher broadcasts status changes to the real-time consumers.
// Publishing is fire-and-forget; callers log errors and move on.
type EventPublisher interface {
	PublishApprovalStatusChanged(ctx context.Context, event dto.ApprovalStatusChanged) error
	Close() error
}
