package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docflow/document"
)

var (
	// ErrDocumentNotFound is returned when no document row exists for the id.
	ErrDocumentNotFound = errors.New("validation: document not found")
	// ErrApproverNotFound is returned when the acting approver does not exist.
	ErrApproverNotFound = errors.New("validation: approver not found")
	// ErrNoAssignedPendingStep is returned when the approver has no pending
	// step on the document.
	ErrNoAssignedPendingStep = errors.New("validation: no pending step assigned to approver")
)

// NotManageableError is returned when a decision arrives for a document
// whose workflow never existed or already concluded. It carries the current
// snapshot so callers can reconcile without a second lookup.
type NotManageableError struct {
	Document document.Document
}

func (e *NotManageableError) Error() string {
	return "validation: document is no longer manageable"
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the document validation workflow engine: it materializes
// workflows at creation time, applies approver decisions, and keeps the
// document's derived status in sync with its steps.
type Service struct {
	pool        TxBeginner
	idGenerator func() string
	now         func() time.Time
}

func NewService(pool TxBeginner) *Service {
	return &Service{
		pool:        pool,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

const documentColumns = `id, company_id, domain_entity_id, name, size_bytes, mime_type, file_hash,
       bucket_key, validation_status, creator_id, created_at, updated_at, last_download_at`

// Status derives the document's aggregate validation state from its current
// step set. It reads, never writes, and is idempotent between mutations.
func (s *Service) Status(ctx context.Context, documentID string) (*document.Status, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("validation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("validation: check document: %w", err)
	}
	if !exists {
		return nil, ErrDocumentNotFound
	}

	total, pending, rejected, err := countSteps(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}
	return DeriveStatus(total, pending, rejected), nil
}

// Steps lists a document's validation steps in execution order.
func (s *Service) Steps(ctx context.Context, documentID string) ([]Step, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("validation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
		SELECT id, document_id, step_order, step_name, assigned_approver_id,
		       actor_approver_id, status, reason, created_at, action_at, updated_at
		FROM document_validations
		WHERE document_id = $1
		ORDER BY step_order
	`

	rows, err := tx.Query(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("validation: query steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var step Step
		if err := rows.Scan(
			&step.ID,
			&step.DocumentID,
			&step.StepOrder,
			&step.StepName,
			&step.AssignedApproverID,
			&step.ActorApproverID,
			&step.Status,
			&step.Reason,
			&step.CreatedAt,
			&step.ActionAt,
			&step.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("validation: scan step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanDocument(row pgx.Row) (document.Document, error) {
	var doc document.Document
	return doc, row.Scan(
		&doc.ID,
		&doc.CompanyID,
		&doc.DomainEntityID,
		&doc.Name,
		&doc.SizeBytes,
		&doc.MimeType,
		&doc.FileHash,
		&doc.BucketKey,
		&doc.ValidationStatus,
		&doc.CreatorID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.LastDownloadAt,
	)
}

func nullableText(v string) any {
	if v == "" {
		return nil
	}
	return v
}
