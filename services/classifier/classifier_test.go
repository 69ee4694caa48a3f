package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/partsvault/approvalstack/internal/enum"
)

func TestExtractTrackingCode(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{
			name:    "plain subject",
			subject: "[PO-APPROVAL-xyz789]",
			want:    "xyz789",
		},
		{
			name:    "reply prefix with PO number",
			subject: "RE: Purchase Order #202503-0001 - [PO-APPROVAL-abc123]",
			want:    "abc123",
		},
		{
			name:    "stacked reply prefixes",
			subject: "Re: RE: Fwd: Approval needed [PO-APPROVAL-k3j2h1]",
			want:    "k3j2h1",
		},
		{
			name:    "no tracking code",
			subject: "RE: Purchase Order #202503-0001",
			want:    "",
		},
		{
			name:    "empty subject",
			subject: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTrackingCode(tt.subject))
		})
	}
}

func TestClassify_OnHold(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"first line exactly on hold", "On hold\n\nJohn Doe"},
		{"on hold mid body", "Thanks for sending this over.\nPutting it on hold for now."},
		{"need changes", "We need changes to the supplier terms before this goes out."},
		{"not ready", "This is not ready yet."},
		{"please revise", "Please revise the quantities on line 3."},
		{"clarification needed", "Clarification needed on the delivery date."},
		{"bare hold", "Hold until the budget review is done."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(ParsedMessage{
				Subject:  "RE: [PO-APPROVAL-abc123]",
				From:     "John Doe <john@acme.com>",
				BodyText: tt.body,
			})
			assert.Equal(t, "abc123", result.TrackingCode)
			assert.Equal(t, enum.DecisionOnHold, result.Decision)
		})
	}
}

func TestClassify_Approved(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"approved with trailing text", "Approved, thanks"},
		{"looks good", "Looks good to me.\n\nBest,\nJane"},
		{"yes", "Yes"},
		{"ok", "OK from my side."},
		{"i approve", "I approve this purchase order."},
		{"confirmed after greeting", "Hi team,\n\nConfirmed.\n\nRegards"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(ParsedMessage{
				Subject:  "[PO-APPROVAL-xyz789]",
				From:     "jane@acme.com",
				BodyText: tt.body,
			})
			assert.Equal(t, "xyz789", result.TrackingCode)
			assert.Equal(t, enum.DecisionApproved, result.Decision)
		})
	}
}

func TestClassify_HoldTakesPrecedenceOverApproval(t *testing.T) {
	// The first non-empty line signals approval but a hold keyword appears
	// further down; hold wins.
	result := Classify(ParsedMessage{
		Subject:  "RE: [PO-APPROVAL-abc123]",
		From:     "john@acme.com",
		BodyText: "Approved in principle, but on hold until pricing is fixed.",
	})
	assert.Equal(t, enum.DecisionOnHold, result.Decision)
}

func TestClassify_FirstLineOnHoldAlwaysWins(t *testing.T) {
	result := Classify(ParsedMessage{
		Subject:  "RE: [PO-APPROVAL-abc123]",
		From:     "john@acme.com",
		BodyText: "ON HOLD\n\nApproved otherwise, looks good.",
	})
	assert.Equal(t, enum.DecisionOnHold, result.Decision)
}

func TestClassify_Unknown(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"question only", "Who is the supplier on this one?"},
		{"empty body", ""},
		{"unrelated text", "See you at the meeting tomorrow."},
		{"keyword not at line start", "The director approved budgets last year."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(ParsedMessage{
				Subject:  "[PO-APPROVAL-abc123]",
				From:     "john@acme.com",
				BodyText: tt.body,
			})
			assert.Equal(t, enum.DecisionUnknown, result.Decision)
		})
	}
}

func TestClassify_SenderExtraction(t *testing.T) {
	result := Classify(ParsedMessage{
		Subject:  "[PO-APPROVAL-abc123]",
		From:     "John Doe <John.Doe@Acme.com>",
		BodyText: "Approved",
	})
	assert.Equal(t, "john.doe@acme.com", result.SenderEmail)
	assert.True(t, result.SenderValid)
}

func TestClassify_NoTrackingCodeIsIgnored(t *testing.T) {
	result := Classify(ParsedMessage{
		Subject:  "RE: lunch on friday",
		From:     "john@acme.com",
		BodyText: "Approved",
	})
	assert.Empty(t, result.TrackingCode)
	assert.Equal(t, enum.DecisionUnknown, result.Decision)
}
