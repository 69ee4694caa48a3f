package enum

// ApprovalStatus is the persisted state of a pending approval record.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusOnHold   ApprovalStatus = "on_hold"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

func (t ApprovalStatus) String() string {
	return string(t)
}

// IsTerminal reports whether the status can no longer change.
func (t ApprovalStatus) IsTerminal() bool {
	return t == ApprovalStatusApproved || t == ApprovalStatusOnHold || t == ApprovalStatusRejected
}

// ApprovalDecision is the outcome of classifying a single reply.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionOnHold   ApprovalDecision = "on_hold"
	DecisionUnknown  ApprovalDecision = "unknown"
)

func (t ApprovalDecision) String() string {
	return string(t)
}

// POStatus is the purchase order lifecycle status. Only the approval-driven
// transitions are owned by this service.
type POStatus string

const (
	POStatusPending  POStatus = "pending"
	POStatusApproved POStatus = "approved"
	POStatusCanceled POStatus = "canceled"
)

func (t POStatus) String() string {
	return string(t)
}
