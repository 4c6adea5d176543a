package httpapi

import (
	"github.com/labstack/echo/v4"

	"docflow/auth"
)

// RegisterRoutes mounts the API surface on the echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc *auth.Service) {
	e.GET("/healthz", h.Health)

	api := e.Group("/api", OptionalAuth(authSvc))

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	api.POST("/approvers", h.CreateApprover)
	api.GET("/approvers", h.ListApprovers)

	api.POST("/companies", h.CreateCompany)

	api.POST("/documents/presigned-upload-url", h.PresignedUpload)
	api.POST("/documents", h.CreateDocument)
	api.GET("/documents", h.ListDocuments)
	api.GET("/documents/:id", h.GetDocument)
	api.GET("/documents/:id/download", h.DownloadDocument)
	api.GET("/documents/:id/status", h.DocumentStatus)
	api.GET("/documents/:id/validations", h.ListValidations)
	api.POST("/documents/:id/approve", h.ApproveDocument)
	api.POST("/documents/:id/reject", h.RejectDocument)
}
