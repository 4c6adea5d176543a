package document

import (
	"time"

	"docflow/company"
)

// Status is the derived validation state of a document. It is never set
// directly by callers; the workflow engine recomputes it after every step
// mutation. A nil status means the document carries no workflow at all.
type Status string

const (
	StatusPending  Status = "P"
	StatusApproved Status = "A"
	StatusRejected Status = "R"
)

// Document mirrors the documents table.
type Document struct {
	ID               string
	CompanyID        string
	DomainEntityID   string
	Name             string
	SizeBytes        int64
	MimeType         string
	FileHash         *string
	BucketKey        string
	ValidationStatus *Status
	CreatorID        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastDownloadAt   *time.Time
}

// StepInput is one requested entry of a document's approval chain.
type StepInput struct {
	Order      int    `json:"order"`
	ApproverID string `json:"approver_id"`
}

// CreateParams bundles everything needed to register a document, optionally
// with an approval workflow attached.
type CreateParams struct {
	CompanyID      string
	EntityType     company.EntityType
	EntityObjectID string
	Name           string
	MimeType       string
	SizeBytes      int64
	FileHash       *string
	BucketKey      string
	Steps          []StepInput
	CreatorID      *string
}

// Filters narrows document listings.
type Filters struct {
	CompanyID string
	EntityID  string
	Status    string
	Page      int
	PageSize  int
	SortKey   string
	SortOrder string
}
