package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/approver"
	"docflow/auth"
)

type memAuthRepo struct {
	byEmail map[string]auth.User
	byID    map[string]auth.User
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{byEmail: map[string]auth.User{}, byID: map[string]auth.User{}}
}

func (r *memAuthRepo) CreateUser(ctx context.Context, params auth.CreateUserParams) (auth.User, error) {
	if _, ok := r.byEmail[params.Email]; ok {
		return auth.User{}, auth.ErrDuplicateEmail
	}
	user := auth.User{
		ID:           uuid.NewString(),
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
	}
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return user, nil
}

func (r *memAuthRepo) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (r *memAuthRepo) GetUserByID(ctx context.Context, id string) (auth.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

type memApproverRepo struct {
	profiles map[string]approver.Profile
}

func (r *memApproverRepo) Create(ctx context.Context, userID string) (approver.Profile, error) {
	if r.profiles == nil {
		r.profiles = map[string]approver.Profile{}
	}
	if _, ok := r.profiles[userID]; ok {
		return approver.Profile{}, approver.ErrDuplicateProfile
	}
	p := approver.Profile{ID: uuid.NewString(), UserID: userID, Active: true}
	r.profiles[userID] = p
	return p, nil
}

func (r *memApproverRepo) GetByID(ctx context.Context, id string) (approver.Profile, error) {
	for _, p := range r.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return approver.Profile{}, approver.ErrNotFound
}

func (r *memApproverRepo) GetByUserID(ctx context.Context, userID string) (approver.Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return approver.Profile{}, approver.ErrNotFound
	}
	return p, nil
}

func (r *memApproverRepo) List(ctx context.Context) ([]approver.Profile, error) {
	out := []approver.Profile{}
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out, nil
}

func newTestServer(t *testing.T) (*echo.Echo, *auth.Service) {
	t.Helper()
	authSvc := auth.NewService(newMemAuthRepo(), "test-secret", time.Hour)
	h := &Handler{
		Auth:      authSvc,
		Approvers: &memApproverRepo{},
	}
	e := echo.New()
	RegisterRoutes(e, h, authSvc)
	return e, authSvc
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/auth/register",
		`{"email":"ana@example.com","password":"s3cret-pass","full_name":"Ana Diaz"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "ana@example.com")
	assert.NotContains(t, rec.Body.String(), "password")

	rec = doJSON(e, http.MethodPost, "/api/auth/login",
		`{"email":"ana@example.com","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "token")
}

func TestRegisterWeakPassword(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/auth/register",
		`{"email":"ana@example.com","password":"short","full_name":"Ana Diaz"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	e, _ := newTestServer(t)

	doJSON(e, http.MethodPost, "/api/auth/register",
		`{"email":"ana@example.com","password":"s3cret-pass","full_name":"Ana Diaz"}`)

	rec := doJSON(e, http.MethodPost, "/api/auth/login",
		`{"email":"ana@example.com","password":"wrong-pass-1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateApproverDuplicate(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/approvers", `{"user_id":"user-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(e, http.MethodPost, "/api/approvers", `{"user_id":"user-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateApproverRequiresUserID(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/approvers", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecisionRequiresApproverID(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/documents/doc-1/approve", `{"reason":"ok"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/documents/doc-1/reject", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresignedUploadRequiresFields(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/api/documents/presigned-upload-url", `{"file_name":"soat.pdf"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptionalAuthResolvesUser(t *testing.T) {
	repo := newMemAuthRepo()
	authSvc := auth.NewService(repo, "test-secret", time.Hour)

	user, err := authSvc.Register(context.Background(), auth.RegisterRequest{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
		FullName: "Ana Diaz",
	})
	require.NoError(t, err)

	login, err := authSvc.Login(context.Background(), auth.LoginRequest{
		Email:    "ana@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	e := echo.New()
	e.GET("/whoami", func(c echo.Context) error {
		if id := userIDFromContext(c); id != nil {
			return c.String(http.StatusOK, *id)
		}
		return c.String(http.StatusOK, "anonymous")
	}, OptionalAuth(authSvc))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, user.ID, rec.Body.String())

	// No token still passes through as anonymous.
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "anonymous", rec.Body.String())

	// Garbage tokens do not authenticate.
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
