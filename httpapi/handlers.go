package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"docflow/approver"
	"docflow/auth"
	"docflow/company"
	"docflow/document"
	"docflow/storage"
	"docflow/validation"
)

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	Auth       *auth.Service
	Approvers  approver.Repository
	Companies  company.Repository
	Documents  *document.Service
	Validation *validation.Service
	Storage    *storage.Service
}

func NewHandler(authSvc *auth.Service, approvers approver.Repository, companies company.Repository, documents *document.Service, validationSvc *validation.Service, store *storage.Service) *Handler {
	return &Handler{
		Auth:       authSvc,
		Approvers:  approvers,
		Companies:  companies,
		Documents:  documents,
		Validation: validationSvc,
		Storage:    store,
	}
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type documentResponse struct {
	ID               string     `json:"id"`
	CompanyID        string     `json:"company_id"`
	DomainEntityID   string     `json:"domain_entity_id"`
	Name             string     `json:"name"`
	SizeBytes        int64      `json:"size_bytes"`
	MimeType         string     `json:"mime_type"`
	BucketKey        string     `json:"bucket_key"`
	ValidationStatus *string    `json:"validation_status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastDownloadAt   *time.Time `json:"last_download_at,omitempty"`
}

type approverResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toApproverResponse(p approver.Profile) approverResponse {
	return approverResponse{ID: p.ID, UserID: p.UserID, Active: p.Active, CreatedAt: p.CreatedAt}
}

type stepResponse struct {
	ID                 string     `json:"id"`
	DocumentID         string     `json:"document_id"`
	StepOrder          int        `json:"step_order"`
	StepName           string     `json:"step_name"`
	AssignedApproverID *string    `json:"assigned_approver_id"`
	ActorApproverID    *string    `json:"actor_approver_id"`
	Status             string     `json:"status"`
	Reason             *string    `json:"reason"`
	ActionAt           *time.Time `json:"action_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toStepResponse(step validation.Step) stepResponse {
	return stepResponse{
		ID:                 step.ID,
		DocumentID:         step.DocumentID,
		StepOrder:          step.StepOrder,
		StepName:           step.StepName,
		AssignedApproverID: step.AssignedApproverID,
		ActorApproverID:    step.ActorApproverID,
		Status:             string(step.Status),
		Reason:             step.Reason,
		ActionAt:           step.ActionAt,
		CreatedAt:          step.CreatedAt,
	}
}

func toDocumentResponse(doc document.Document) documentResponse {
	var status *string
	if doc.ValidationStatus != nil {
		s := string(*doc.ValidationStatus)
		status = &s
	}
	return documentResponse{
		ID:               doc.ID,
		CompanyID:        doc.CompanyID,
		DomainEntityID:   doc.DomainEntityID,
		Name:             doc.Name,
		SizeBytes:        doc.SizeBytes,
		MimeType:         doc.MimeType,
		BucketKey:        doc.BucketKey,
		ValidationStatus: status,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
		LastDownloadAt:   doc.LastDownloadAt,
	}
}

// Register creates an account.
func (h *Handler) Register(c echo.Context) error {
	var req auth.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.Auth.Register(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrDuplicateEmail):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, FullName: user.FullName})
}

// Login authenticates an account and returns a JWT.
func (h *Handler) Login(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.Auth.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token": result.Token,
		"user":  userResponse{ID: result.User.ID, Email: result.User.Email, FullName: result.User.FullName},
	})
}

// CreateApprover attaches an approver profile to an account.
func (h *Handler) CreateApprover(c echo.Context) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id required")
	}

	profile, err := h.Approvers.Create(c.Request().Context(), req.UserID)
	if err != nil {
		if errors.Is(err, approver.ErrDuplicateProfile) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, toApproverResponse(profile))
}

// ListApprovers returns every approver profile.
func (h *Handler) ListApprovers(c echo.Context) error {
	profiles, err := h.Approvers.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list approvers failed")
	}
	items := make([]approverResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, toApproverResponse(p))
	}
	return c.JSON(http.StatusOK, items)
}

// CreateCompany registers a company.
func (h *Handler) CreateCompany(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
		NIT  string `json:"nit"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" || req.NIT == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and nit required")
	}

	comp, err := h.Companies.Create(c.Request().Context(), req.Name, req.NIT)
	if err != nil {
		if errors.Is(err, company.ErrDuplicateNIT) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "create company failed")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":     comp.ID,
		"name":   comp.Name,
		"nit":    comp.NIT,
		"active": comp.Active,
	})
}

// PresignedUpload hands the client a time-limited upload URL. The bucket
// key is generated when the caller does not supply one.
func (h *Handler) PresignedUpload(c echo.Context) error {
	var req struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		BucketKey   string `json:"bucket_key"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FileName == "" || req.ContentType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_name and content_type required")
	}

	bucketKey := req.BucketKey
	if bucketKey == "" {
		bucketKey = document.GenerateBucketKey(req.FileName)
	}

	upload, err := h.Storage.PresignedUpload(c.Request().Context(), bucketKey, req.ContentType)
	if err != nil {
		slog.Error("presign upload failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "presign upload failed")
	}

	return c.JSON(http.StatusOK, upload)
}

type createDocumentRequest struct {
	CompanyID string `json:"company_id"`
	Entity    struct {
		EntityType string `json:"entity_type"`
		EntityID   string `json:"entity_id"`
	} `json:"entity"`
	Document struct {
		Name      string `json:"name"`
		MimeType  string `json:"mime_type"`
		SizeBytes int64  `json:"size_bytes"`
		BucketKey string `json:"bucket_key"`
	} `json:"document"`
	ValidationFlow *struct {
		Enabled bool                 `json:"enabled"`
		Steps   []document.StepInput `json:"steps"`
	} `json:"validation_flow"`
}

// CreateDocument registers a document and, when requested, its approval
// workflow.
func (h *Handler) CreateDocument(c echo.Context) error {
	var req createDocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Document.Name == "" || req.Document.MimeType == "" || req.Document.BucketKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "document name, mime_type and bucket_key required")
	}

	entityType := company.EntityType(normalizeEntityType(req.Entity.EntityType))
	if !company.ValidEntityType(entityType) || req.Entity.EntityID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "entity type and id required")
	}

	var steps []document.StepInput
	if req.ValidationFlow != nil && req.ValidationFlow.Enabled {
		steps = req.ValidationFlow.Steps
	}

	doc, err := h.Documents.Create(c.Request().Context(), document.CreateParams{
		CompanyID:      req.CompanyID,
		EntityType:     entityType,
		EntityObjectID: req.Entity.EntityID,
		Name:           req.Document.Name,
		MimeType:       req.Document.MimeType,
		SizeBytes:      req.Document.SizeBytes,
		BucketKey:      req.Document.BucketKey,
		Steps:          steps,
		CreatorID:      userIDFromContext(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, company.ErrNotFound):
			return echo.NewHTTPError(http.StatusBadRequest, "company does not exist")
		case errors.Is(err, document.ErrObjectMissing):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, document.ErrDuplicateBucketKey):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, document.ErrInvalidSteps):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, validation.ErrUnknownApprover):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, validation.ErrMalformedWorkflow):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		slog.Error("create document failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "create document failed")
	}

	return c.JSON(http.StatusCreated, toDocumentResponse(doc))
}

// GetDocument returns one document.
func (h *Handler) GetDocument(c echo.Context) error {
	doc, err := h.Documents.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document does not exist")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "get document failed")
	}
	return c.JSON(http.StatusOK, toDocumentResponse(doc))
}

// ListDocuments returns a filtered page of documents.
func (h *Handler) ListDocuments(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	docs, total, err := h.Documents.List(c.Request().Context(), document.Filters{
		CompanyID: c.QueryParam("company_id"),
		EntityID:  c.QueryParam("entity_id"),
		Status:    c.QueryParam("status"),
		Page:      page,
		PageSize:  pageSize,
		SortKey:   c.QueryParam("sort"),
		SortOrder: c.QueryParam("order"),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list documents failed")
	}

	items := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDocumentResponse(doc))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total})
}

// DownloadDocument returns a time-limited download URL for the stored object.
func (h *Handler) DownloadDocument(c echo.Context) error {
	url, _, err := h.Documents.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document does not exist")
		}
		slog.Error("download presign failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "download failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"download_url": url})
}

// DocumentStatus returns the derived validation status of a document.
func (h *Handler) DocumentStatus(c echo.Context) error {
	status, err := h.Validation.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, validation.ErrDocumentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document does not exist")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "status failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"validation_status": status})
}

// ListValidations returns a document's steps in execution order.
func (h *Handler) ListValidations(c echo.Context) error {
	steps, err := h.Validation.Steps(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list validations failed")
	}
	items := make([]stepResponse, 0, len(steps))
	for _, step := range steps {
		items = append(items, toStepResponse(step))
	}
	return c.JSON(http.StatusOK, items)
}

type decisionRequest struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason"`
}

// ApproveDocument applies an approval decision for the given approver.
func (h *Handler) ApproveDocument(c echo.Context) error {
	return h.decide(c, validation.DecisionApprove)
}

// RejectDocument applies a rejection decision for the given approver.
func (h *Handler) RejectDocument(c echo.Context) error {
	return h.decide(c, validation.DecisionReject)
}

func (h *Handler) decide(c echo.Context, decision validation.Decision) error {
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ApproverID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "approver_id required")
	}

	doc, err := h.Validation.Act(c.Request().Context(), validation.ActParams{
		DocumentID: c.Param("id"),
		ApproverID: req.ApproverID,
		Decision:   decision,
		Reason:     req.Reason,
	})
	if err != nil {
		var notManageable *validation.NotManageableError
		switch {
		case errors.As(err, &notManageable):
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":    "document is no longer manageable",
				"document": toDocumentResponse(notManageable.Document),
			})
		case errors.Is(err, validation.ErrDocumentNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "document does not exist")
		case errors.Is(err, validation.ErrApproverNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "approver does not exist")
		case errors.Is(err, validation.ErrNoAssignedPendingStep):
			return echo.NewHTTPError(http.StatusNotFound, "no pending validation step assigned to this approver")
		}
		slog.Error("decision failed", "decision", decision, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "decision failed")
	}

	return c.JSON(http.StatusOK, toDocumentResponse(doc))
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "docflow"})
}

func normalizeEntityType(t string) string {
	switch t {
	case "vehicle", "VEHICLE":
		return "VEHICLE"
	case "employee", "EMPLOYEE":
		return "EMPLOYEE"
	default:
		if t == "" {
			return ""
		}
		return "OTHER"
	}
}
