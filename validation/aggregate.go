package validation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"docflow/document"
)

// DeriveStatus computes a document's aggregate validation state from the
// multiset of its step statuses. The derivation is total and
// order-independent: no steps means no workflow at all (nil); one rejection
// poisons the document; otherwise it is approved only once nothing is left
// pending.
func DeriveStatus(total, pending, rejected int) *document.Status {
	if total == 0 {
		return nil
	}

	var status document.Status
	switch {
	case rejected > 0:
		status = document.StatusRejected
	case pending == 0:
		status = document.StatusApproved
	default:
		status = document.StatusPending
	}
	return &status
}

func countSteps(ctx context.Context, tx pgx.Tx, documentID string) (total, pending, rejected int, err error) {
	const q = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'P'),
		       COUNT(*) FILTER (WHERE status = 'R')
		FROM document_validations
		WHERE document_id = $1
	`
	if err := tx.QueryRow(ctx, q, documentID).Scan(&total, &pending, &rejected); err != nil {
		return 0, 0, 0, fmt.Errorf("validation: count steps: %w", err)
	}
	return total, pending, rejected, nil
}

// recompute derives the aggregate status from the step set and persists it
// on the document row, all inside the caller's transaction.
func (s *Service) recompute(ctx context.Context, tx pgx.Tx, documentID string) (*document.Status, error) {
	total, pending, rejected, err := countSteps(ctx, tx, documentID)
	if err != nil {
		return nil, err
	}

	status := DeriveStatus(total, pending, rejected)

	const q = `
		UPDATE documents
		SET validation_status = $2,
		    updated_at = get_tx_timestamp()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, q, documentID, status); err != nil {
		return nil, fmt.Errorf("validation: persist aggregate status: %w", err)
	}
	return status, nil
}
