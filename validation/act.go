package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"docflow/document"
)

// Act applies one approver decision to a document's workflow inside a
// single transaction. The document row is locked FOR UPDATE first, which
// serializes concurrent decisions against the same document; racing callers
// re-check the preconditions under the lock and lose cleanly instead of
// overwriting each other.
//
// Approving a step ratifies every still-pending step at or below its order;
// rejecting touches only the matched step. Either way the aggregate status
// is recomputed and persisted before commit, and the refreshed document
// snapshot is returned.
func (s *Service) Act(ctx context.Context, params ActParams) (document.Document, error) {
	if params.DocumentID == "" {
		return document.Document{}, fmt.Errorf("validation: missing document id")
	}
	if params.ApproverID == "" {
		return document.Document{}, fmt.Errorf("validation: missing approver id")
	}
	if params.Decision != DecisionApprove && params.Decision != DecisionReject {
		return document.Document{}, fmt.Errorf("validation: invalid decision %q", params.Decision)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return document.Document{}, fmt.Errorf("validation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	doc, err := lockDocument(ctx, tx, params.DocumentID)
	if err != nil {
		return document.Document{}, err
	}

	if doc.ValidationStatus == nil || *doc.ValidationStatus != document.StatusPending {
		return document.Document{}, &NotManageableError{Document: doc}
	}

	var approverExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM approvers WHERE id = $1)`, params.ApproverID).Scan(&approverExists); err != nil {
		return document.Document{}, fmt.Errorf("validation: check approver: %w", err)
	}
	if !approverExists {
		return document.Document{}, ErrApproverNotFound
	}

	// Lowest pending step assigned to this approver. The unique step order
	// per document makes this deterministic even if one approver holds
	// several steps.
	const matchSQL = `
		SELECT id, step_order
		FROM document_validations
		WHERE document_id = $1
		  AND assigned_approver_id = $2
		  AND status = 'P'
		ORDER BY step_order
		LIMIT 1
	`
	var (
		stepID    string
		stepOrder int
	)
	if err := tx.QueryRow(ctx, matchSQL, params.DocumentID, params.ApproverID).Scan(&stepID, &stepOrder); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, ErrNoAssignedPendingStep
		}
		return document.Document{}, fmt.Errorf("validation: match step: %w", err)
	}

	actionAt := s.now().UTC()

	switch params.Decision {
	case DecisionApprove:
		// Approving step K ratifies every still-pending step at or below K.
		const cascadeSQL = `
			UPDATE document_validations
			SET status = 'A',
			    actor_approver_id = $2,
			    reason = $3,
			    action_at = $4,
			    updated_at = get_tx_timestamp()
			WHERE document_id = $1
			  AND step_order <= $5
			  AND status = 'P'
		`
		if _, err := tx.Exec(ctx, cascadeSQL, params.DocumentID, params.ApproverID, nullableText(params.Reason), actionAt, stepOrder); err != nil {
			return document.Document{}, fmt.Errorf("validation: approve steps: %w", err)
		}

	case DecisionReject:
		const rejectSQL = `
			UPDATE document_validations
			SET status = 'R',
			    actor_approver_id = $2,
			    reason = $3,
			    action_at = $4,
			    updated_at = get_tx_timestamp()
			WHERE id = $1
			  AND status = 'P'
		`
		tag, err := tx.Exec(ctx, rejectSQL, stepID, params.ApproverID, nullableText(params.Reason), actionAt)
		if err != nil {
			return document.Document{}, fmt.Errorf("validation: reject step: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return document.Document{}, ErrNoAssignedPendingStep
		}
	}

	status, err := s.recompute(ctx, tx, params.DocumentID)
	if err != nil {
		return document.Document{}, err
	}

	eventPayload := map[string]any{
		"document_id": params.DocumentID,
		"approver_id": params.ApproverID,
		"decision":    params.Decision,
		"step_order":  stepOrder,
		"status":      status,
	}
	if err := insertDecisionEvent(ctx, tx, params.DocumentID, params.ApproverID, eventPayload); err != nil {
		return document.Document{}, err
	}
	if err := enqueueOutbox(ctx, tx, "document.validation_decided", eventPayload); err != nil {
		return document.Document{}, err
	}

	doc, err = refreshDocument(ctx, tx, params.DocumentID)
	if err != nil {
		return document.Document{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return document.Document{}, fmt.Errorf("validation: commit decision: %w", err)
	}

	return doc, nil
}

func lockDocument(ctx context.Context, tx pgx.Tx, documentID string) (document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`

	doc, err := scanDocument(tx.QueryRow(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return document.Document{}, ErrDocumentNotFound
		}
		return document.Document{}, fmt.Errorf("validation: lock document: %w", err)
	}
	return doc, nil
}

func refreshDocument(ctx context.Context, tx pgx.Tx, documentID string) (document.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(tx.QueryRow(ctx, query, documentID))
	if err != nil {
		return document.Document{}, fmt.Errorf("validation: refresh document: %w", err)
	}
	return doc, nil
}

func insertDecisionEvent(ctx context.Context, tx pgx.Tx, documentID, actorID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("validation: marshal event payload: %w", err)
	}
	const q = `
		INSERT INTO document_events (document_id, type, payload, actor_id)
		VALUES ($1, 'VALIDATION_DECIDED', $2::jsonb, $3::uuid)
	`
	if _, err := tx.Exec(ctx, q, documentID, body, actorID); err != nil {
		return fmt.Errorf("validation: insert decision event: %w", err)
	}
	return nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("validation: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("validation: enqueue outbox: %w", err)
	}
	return nil
}
