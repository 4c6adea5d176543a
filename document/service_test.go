package document

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"docflow/company"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}
func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}
func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (t *fakeTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (t *fakeTx) Conn() *pgx.Conn { panic("not implemented") }

type fakePool struct {
	tx     *fakeTx
	begins int
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	p.begins++
	return p.tx, nil
}

type fakeRepo struct {
	inserted *InsertParams
	doc      Document
}

func (r *fakeRepo) Insert(ctx context.Context, tx pgx.Tx, params InsertParams) (Document, error) {
	r.inserted = &params
	r.doc = Document{
		ID:               "doc-1",
		CompanyID:        params.CompanyID,
		DomainEntityID:   params.DomainEntityID,
		Name:             params.Name,
		SizeBytes:        params.SizeBytes,
		MimeType:         params.MimeType,
		BucketKey:        params.BucketKey,
		ValidationStatus: params.ValidationStatus,
		CreatorID:        params.CreatorID,
	}
	return r.doc, nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (Document, error) {
	if r.doc.ID != id {
		return Document{}, ErrNotFound
	}
	return r.doc, nil
}

func (r *fakeRepo) GetTx(ctx context.Context, tx pgx.Tx, id string) (Document, error) {
	return r.doc, nil
}

func (r *fakeRepo) List(ctx context.Context, filters Filters) ([]Document, int, error) {
	return []Document{r.doc}, 1, nil
}

func (r *fakeRepo) TouchDownload(ctx context.Context, id string) (Document, error) {
	touched := r.doc
	return touched, nil
}

type fakeCompanies struct {
	missing bool
}

func (c *fakeCompanies) GetByID(ctx context.Context, id string) (company.Company, error) {
	if c.missing {
		return company.Company{}, company.ErrNotFound
	}
	return company.Company{ID: id, Name: "Acme", NIT: "900123456"}, nil
}

func (c *fakeCompanies) GetOrCreateEntity(ctx context.Context, tx pgx.Tx, entityType company.EntityType, objectID string) (company.DomainEntity, error) {
	return company.DomainEntity{ID: "entity-1", EntityType: entityType, ObjectID: objectID}, nil
}

type fakeStorage struct {
	exists  bool
	statErr error
}

func (s *fakeStorage) Exists(ctx context.Context, bucketKey string) (bool, error) {
	return s.exists, s.statErr
}

func (s *fakeStorage) PresignedDownload(ctx context.Context, bucketKey string) (string, error) {
	return "https://store.local/" + bucketKey, nil
}

type fakeWorkflow struct {
	calls    int
	steps    []StepInput
	docID    string
	failWith error
}

func (w *fakeWorkflow) Initialize(ctx context.Context, tx pgx.Tx, documentID string, steps []StepInput) error {
	w.calls++
	w.docID = documentID
	w.steps = steps
	return w.failWith
}

func validParams() CreateParams {
	return CreateParams{
		CompanyID:      "company-1",
		EntityType:     company.EntityVehicle,
		EntityObjectID: "ABC123",
		Name:           "soat.pdf",
		MimeType:       "application/pdf",
		SizeBytes:      2048,
		BucketKey:      "uploads/abc/soat.pdf",
	}
}

func TestCreateWithoutSteps(t *testing.T) {
	tx := &fakeTx{}
	pool := &fakePool{tx: tx}
	repo := &fakeRepo{}
	workflow := &fakeWorkflow{}
	svc := NewService(pool, repo, &fakeCompanies{}, workflow, &fakeStorage{exists: true})

	doc, err := svc.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc.ValidationStatus != nil {
		t.Errorf("ValidationStatus = %v, want nil", *doc.ValidationStatus)
	}
	if workflow.calls != 0 {
		t.Errorf("workflow initialized %d times, want 0", workflow.calls)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestCreateWithSteps(t *testing.T) {
	tx := &fakeTx{}
	pool := &fakePool{tx: tx}
	repo := &fakeRepo{}
	workflow := &fakeWorkflow{}
	svc := NewService(pool, repo, &fakeCompanies{}, workflow, &fakeStorage{exists: true})

	params := validParams()
	params.Steps = []StepInput{
		{Order: 1, ApproverID: "appr-1"},
		{Order: 2, ApproverID: "appr-2"},
	}

	doc, err := svc.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if workflow.calls != 1 {
		t.Fatalf("workflow initialized %d times, want 1", workflow.calls)
	}
	if workflow.docID != doc.ID {
		t.Errorf("workflow document = %s, want %s", workflow.docID, doc.ID)
	}
	if len(workflow.steps) != 2 {
		t.Errorf("workflow got %d steps, want 2", len(workflow.steps))
	}
	if repo.inserted.ValidationStatus == nil || *repo.inserted.ValidationStatus != StatusPending {
		t.Error("document was not inserted as pending")
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestCreateCompanyMissing(t *testing.T) {
	pool := &fakePool{tx: &fakeTx{}}
	svc := NewService(pool, &fakeRepo{}, &fakeCompanies{missing: true}, &fakeWorkflow{}, &fakeStorage{exists: true})

	_, err := svc.Create(context.Background(), validParams())
	if !errors.Is(err, company.ErrNotFound) {
		t.Fatalf("Create() error = %v, want %v", err, company.ErrNotFound)
	}
	if pool.begins != 0 {
		t.Error("transaction opened before company check")
	}
}

func TestCreateObjectMissing(t *testing.T) {
	pool := &fakePool{tx: &fakeTx{}}
	svc := NewService(pool, &fakeRepo{}, &fakeCompanies{}, &fakeWorkflow{}, &fakeStorage{exists: false})

	_, err := svc.Create(context.Background(), validParams())
	if !errors.Is(err, ErrObjectMissing) {
		t.Fatalf("Create() error = %v, want %v", err, ErrObjectMissing)
	}
	if pool.begins != 0 {
		t.Error("transaction opened before storage probe")
	}
}

func TestCreateWorkflowFailureRollsBack(t *testing.T) {
	tx := &fakeTx{}
	pool := &fakePool{tx: tx}
	workflowErr := errors.New("validation: workflow references unknown approver")
	workflow := &fakeWorkflow{failWith: workflowErr}
	svc := NewService(pool, &fakeRepo{}, &fakeCompanies{}, workflow, &fakeStorage{exists: true})

	params := validParams()
	params.Steps = []StepInput{{Order: 1, ApproverID: "ghost"}}

	_, err := svc.Create(context.Background(), params)
	if !errors.Is(err, workflowErr) {
		t.Fatalf("Create() error = %v, want %v", err, workflowErr)
	}
	if tx.committed {
		t.Error("transaction committed despite workflow failure")
	}
	if !tx.rolledBack {
		t.Error("transaction was not rolled back")
	}
}

func TestValidateSteps(t *testing.T) {
	cases := []struct {
		name    string
		steps   []StepInput
		wantErr bool
	}{
		{"empty", nil, false},
		{"single", []StepInput{{Order: 1, ApproverID: "a"}}, false},
		{"contiguous", []StepInput{{Order: 2, ApproverID: "b"}, {Order: 1, ApproverID: "a"}, {Order: 3, ApproverID: "c"}}, false},
		{"gap", []StepInput{{Order: 1, ApproverID: "a"}, {Order: 3, ApproverID: "c"}}, true},
		{"starts at zero", []StepInput{{Order: 0, ApproverID: "a"}}, true},
		{"duplicate order", []StepInput{{Order: 1, ApproverID: "a"}, {Order: 1, ApproverID: "b"}}, true},
		{"blank approver", []StepInput{{Order: 1, ApproverID: "  "}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSteps(tc.steps)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateSteps(%v) error = %v, wantErr %v", tc.steps, err, tc.wantErr)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	pool := &fakePool{tx: &fakeTx{}}
	repo := &fakeRepo{doc: Document{ID: "doc-1", BucketKey: "uploads/abc/soat.pdf"}}
	svc := NewService(pool, repo, &fakeCompanies{}, &fakeWorkflow{}, &fakeStorage{exists: true})

	url, _, err := svc.Download(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if url != "https://store.local/uploads/abc/soat.pdf" {
		t.Errorf("Download() url = %s", url)
	}
}

func TestDownloadNotFound(t *testing.T) {
	pool := &fakePool{tx: &fakeTx{}}
	svc := NewService(pool, &fakeRepo{}, &fakeCompanies{}, &fakeWorkflow{}, &fakeStorage{exists: true})

	_, _, err := svc.Download(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download() error = %v, want %v", err, ErrNotFound)
	}
}
