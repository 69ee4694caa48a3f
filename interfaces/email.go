package interfaces

import (
	"context"

	"github.com/partsvault/approvalstack/dto"
)

// EmailSender dispatches one outbound message. Implemented by the SMTP client;
// substituted with a double in tests.
type EmailSender interface {
	Send(ctx context.Context, email *dto.OutboundEmail) error
}
