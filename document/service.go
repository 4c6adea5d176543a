package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"docflow/company"
)

var (
	// ErrObjectMissing signals the bucket key does not exist in storage.
	ErrObjectMissing = errors.New("document: file does not exist in storage")
	// ErrInvalidSteps signals the requested approval chain is not a
	// contiguous 1..N sequence.
	ErrInvalidSteps = errors.New("document: step orders must be sequential starting from 1")
)

// WorkflowInitializer materializes validation steps for a freshly inserted
// document inside the creation transaction.
type WorkflowInitializer interface {
	Initialize(ctx context.Context, tx pgx.Tx, documentID string, steps []StepInput) error
}

// Storage is the object-store capability the document service consumes:
// existence probes before creation and time-limited download URLs.
type Storage interface {
	Exists(ctx context.Context, bucketKey string) (bool, error)
	PresignedDownload(ctx context.Context, bucketKey string) (string, error)
}

// CompanyResolver covers the company bookkeeping the creation path needs.
type CompanyResolver interface {
	GetByID(ctx context.Context, id string) (company.Company, error)
	GetOrCreateEntity(ctx context.Context, tx pgx.Tx, entityType company.EntityType, objectID string) (company.DomainEntity, error)
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service handles document registration, listing and downloads.
type Service struct {
	pool        TxBeginner
	repo        Repository
	companies   CompanyResolver
	workflow    WorkflowInitializer
	storage     Storage
	idGenerator func() string
}

func NewService(pool TxBeginner, repo Repository, companies CompanyResolver, workflow WorkflowInitializer, storage Storage) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		companies:   companies,
		workflow:    workflow,
		storage:     storage,
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// ValidateSteps checks the requested approval chain is a contiguous
// permutation 1..N. Deeper checks (approver existence, duplicate orders)
// belong to the workflow initializer.
func ValidateSteps(steps []StepInput) error {
	if len(steps) == 0 {
		return nil
	}
	orders := make([]int, len(steps))
	for i, step := range steps {
		if step.Order < 1 {
			return ErrInvalidSteps
		}
		if strings.TrimSpace(step.ApproverID) == "" {
			return fmt.Errorf("step %d missing approver id: %w", step.Order, ErrInvalidSteps)
		}
		orders[i] = step.Order
	}
	sort.Ints(orders)
	for i, order := range orders {
		if order != i+1 {
			return ErrInvalidSteps
		}
	}
	return nil
}

// Create registers a document after verifying the company and the stored
// object, then attaches the approval workflow. The whole write path runs in
// one transaction, so a failing workflow rolls the document back with it and
// no half-initialized document survives.
func (s *Service) Create(ctx context.Context, params CreateParams) (Document, error) {
	if params.Name == "" {
		return Document{}, fmt.Errorf("document: name required")
	}
	if params.MimeType == "" {
		return Document{}, fmt.Errorf("document: mime type required")
	}
	if params.SizeBytes < 0 {
		return Document{}, fmt.Errorf("document: invalid size")
	}
	if params.BucketKey == "" {
		return Document{}, fmt.Errorf("document: bucket key required")
	}
	if err := ValidateSteps(params.Steps); err != nil {
		return Document{}, err
	}

	if _, err := s.companies.GetByID(ctx, params.CompanyID); err != nil {
		return Document{}, err
	}

	// The storage probe is a network call to an external collaborator; it
	// happens before the transaction opens and aborts creation on failure.
	exists, err := s.storage.Exists(ctx, params.BucketKey)
	if err != nil {
		return Document{}, fmt.Errorf("document: check storage object: %w", err)
	}
	if !exists {
		return Document{}, ErrObjectMissing
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("document: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	entity, err := s.companies.GetOrCreateEntity(ctx, tx, params.EntityType, params.EntityObjectID)
	if err != nil {
		return Document{}, err
	}

	var status *Status
	if len(params.Steps) > 0 {
		pending := StatusPending
		status = &pending
	}

	doc, err := s.repo.Insert(ctx, tx, InsertParams{
		ID:               s.idGenerator(),
		CompanyID:        params.CompanyID,
		DomainEntityID:   entity.ID,
		Name:             params.Name,
		SizeBytes:        params.SizeBytes,
		MimeType:         params.MimeType,
		FileHash:         params.FileHash,
		BucketKey:        params.BucketKey,
		ValidationStatus: status,
		CreatorID:        params.CreatorID,
	})
	if err != nil {
		return Document{}, err
	}

	if len(params.Steps) > 0 {
		if err := s.workflow.Initialize(ctx, tx, doc.ID, params.Steps); err != nil {
			return Document{}, err
		}
		// Re-read so the response carries the status the initializer derived.
		doc, err = s.repo.GetTx(ctx, tx, doc.ID)
		if err != nil {
			return Document{}, err
		}
	}

	eventPayload := map[string]any{
		"document_id": doc.ID,
		"bucket_key":  doc.BucketKey,
		"steps":       len(params.Steps),
	}
	if err := insertDocumentEvent(ctx, tx, doc.ID, "DOCUMENT_CREATED", params.CreatorID, eventPayload); err != nil {
		return Document{}, err
	}
	if err := enqueueOutbox(ctx, tx, "document.created", map[string]any{
		"document_id": doc.ID,
		"company_id":  doc.CompanyID,
		"status":      doc.ValidationStatus,
	}); err != nil {
		return Document{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Document{}, fmt.Errorf("document: commit: %w", err)
	}

	return doc, nil
}

// Get returns a single document by ID.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered page of documents plus the unpaged total.
func (s *Service) List(ctx context.Context, filters Filters) ([]Document, int, error) {
	return s.repo.List(ctx, filters)
}

// Download produces a time-limited URL for the document's stored object and
// stamps the last download timestamp.
func (s *Service) Download(ctx context.Context, id string) (string, Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", Document{}, err
	}

	url, err := s.storage.PresignedDownload(ctx, doc.BucketKey)
	if err != nil {
		return "", Document{}, fmt.Errorf("document: presign download: %w", err)
	}

	doc, err = s.repo.TouchDownload(ctx, id)
	if err != nil {
		return "", Document{}, err
	}

	return url, doc, nil
}

// GenerateBucketKey builds a fresh object key for an upload when the caller
// did not supply one.
func GenerateBucketKey(fileName string) string {
	return fmt.Sprintf("uploads/%s/%s", uuid.NewString(), fileName)
}

func insertDocumentEvent(ctx context.Context, tx pgx.Tx, documentID, eventType string, actorID *string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("document: marshal event payload: %w", err)
	}
	var actor any
	if actorID != nil && *actorID != "" {
		actor = *actorID
	}
	const q = `
		INSERT INTO document_events (document_id, type, payload, actor_id)
		VALUES ($1, $2, $3::jsonb, $4::uuid)
	`
	if _, err := tx.Exec(ctx, q, documentID, eventType, body, actor); err != nil {
		return fmt.Errorf("document: insert event: %w", err)
	}
	return nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("document: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`
	if _, err := tx.Exec(ctx, q, topic, body); err != nil {
		return fmt.Errorf("document: enqueue outbox: %w", err)
	}
	return nil
}
