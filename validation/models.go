package validation

import "time"

// StepStatus is the state of a single validation step. Approved and
// Rejected are terminal; nothing transitions out of them.
type StepStatus string

const (
	StepPending  StepStatus = "P"
	StepApproved StepStatus = "A"
	StepRejected StepStatus = "R"
)

// Decision is the closed set of actions an approver can take on a step.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Step mirrors the document_validations table. A step belongs to exactly one
// document; the (document_id, step_order) pair is unique.
type Step struct {
	ID                 string
	DocumentID         string
	StepOrder          int
	StepName           string
	AssignedApproverID *string
	ActorApproverID    *string
	Status             StepStatus
	Reason             *string
	CreatedAt          time.Time
	ActionAt           *time.Time
	UpdatedAt          time.Time
}

// ActParams carries one approver decision against one document.
type ActParams struct {
	DocumentID string
	ApproverID string
	Decision   Decision
	Reason     string
}
