package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"docflow/document"
)

var (
	// ErrMalformedWorkflow signals two requested steps share a step order.
	ErrMalformedWorkflow = errors.New("validation: duplicate step order in workflow")
	// ErrUnknownApprover signals a requested step references a missing approver.
	ErrUnknownApprover = errors.New("validation: workflow references unknown approver")
)

// Initialize materializes one pending validation step per requested entry
// and persists the document's derived status. It runs inside the caller's
// transaction: any failure rolls back every step together with whatever the
// caller wrote, so a document is never left with a partial workflow.
//
// The caller validates that orders form a contiguous 1..N sequence; the
// unique (document_id, step_order) constraint still backstops duplicates
// here.
func (s *Service) Initialize(ctx context.Context, tx pgx.Tx, documentID string, steps []document.StepInput) error {
	if documentID == "" {
		return fmt.Errorf("validation: missing document id")
	}

	const insertSQL = `
		INSERT INTO document_validations (id, document_id, step_order, step_name, assigned_approver_id)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5)
	`

	for _, step := range steps {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM approvers WHERE id = $1)`, step.ApproverID).Scan(&exists); err != nil {
			return fmt.Errorf("validation: check approver: %w", err)
		}
		if !exists {
			return fmt.Errorf("approver %s: %w", step.ApproverID, ErrUnknownApprover)
		}

		stepName := fmt.Sprintf("Step %d", step.Order)
		if _, err := tx.Exec(ctx, insertSQL, s.idGenerator(), documentID, step.Order, stepName, step.ApproverID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrMalformedWorkflow
			}
			return fmt.Errorf("validation: insert step: %w", err)
		}
	}

	if _, err := s.recompute(ctx, tx, documentID); err != nil {
		return err
	}
	return nil
}
