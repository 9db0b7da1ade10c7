package handler

import (
	"net/http"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/internal/quotes/service"
	"quote_pipeline_backend/internal/quotes/transport"
	"quote_pipeline_backend/platform/apperr"
	"quote_pipeline_backend/platform/httpkit"
	"quote_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for quotes
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new quotes handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the quote routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/calculate", h.PreviewCalculation)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id", h.Update)
	rg.PUT("/:id/items", h.ReplaceItems)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.POST("/:id/send", h.Send)
	rg.POST("/:id/reopen", h.Reopen)
	rg.DELETE("/:id/gateway-record", h.DiscardGatewayRecord)
	rg.GET("/:id/activities", h.ListActivities)
	rg.GET("/:id/pdf", h.DownloadPDF)
	rg.DELETE("/:id", h.Delete)
}

// RegisterAdminRoutes registers maintenance routes under the admin group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/expire", h.ExpireOverdue)
}

// ExpireOverdue handles POST /api/v1/admin/quotes/expire
func (h *Handler) ExpireOverdue(c *gin.Context) {
	expired, err := h.svc.ExpireOverdue(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"expired": expired, "count": len(expired)})
}

// List handles GET /api/v1/quotes
func (h *Handler) List(c *gin.Context) {
	var req transport.ListQuotesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if !h.validate(c, req) {
		return
	}

	actor, ok := authz.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.List(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Create handles POST /api/v1/quotes
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateQuoteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	actor, ok := authz.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// PreviewCalculation handles POST /api/v1/quotes/calculate
func (h *Handler) PreviewCalculation(c *gin.Context) {
	var req transport.QuoteCalculationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	actor, ok := authz.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Preview(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// GetByID handles GET /api/v1/quotes/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Update handles PATCH /api/v1/quotes/:id
func (h *Handler) Update(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	var req transport.UpdateQuoteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Update(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ReplaceItems handles PUT /api/v1/quotes/:id/items
func (h *Handler) ReplaceItems(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	var req transport.ReplaceItemsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.ReplaceItems(c.Request.Context(), actor, id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// UpdateStatus handles PATCH /api/v1/quotes/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	var req transport.UpdateQuoteStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Transition(c.Request.Context(), actor, id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Send handles POST /api/v1/quotes/:id/send
// A gateway failure still answers with the send envelope (success=false) so
// the console can show what the invoicing service said.
func (h *Handler) Send(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	result, err := h.svc.Send(c.Request.Context(), actor, id)
	if err != nil {
		if appErr, isApp := apperr.As(err); isApp && (appErr.Kind == apperr.KindSyncRejected || appErr.Kind == apperr.KindSyncTransient) {
			_ = c.Error(err)
			httpkit.JSON(c, appErr.HTTPStatus(), transport.SendQuoteResponse{
				Success: false,
				Status:  "draft",
				Error:   appErr.Message,
				Details: appErr.Details,
			})
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, result)
}

// Reopen handles POST /api/v1/quotes/:id/reopen
func (h *Handler) Reopen(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	var req transport.ReopenQuoteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Reopen(c.Request.Context(), actor, id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// DiscardGatewayRecord handles DELETE /api/v1/quotes/:id/gateway-record
func (h *Handler) DiscardGatewayRecord(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	result, err := h.svc.DiscardGatewayRecord(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ListActivities handles GET /api/v1/quotes/:id/activities
func (h *Handler) ListActivities(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	result, err := h.svc.Activities(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// DownloadPDF handles GET /api/v1/quotes/:id/pdf
// With ?format=link and object storage configured, the archived PDF's
// presigned URL is returned instead of the bytes.
func (h *Handler) DownloadPDF(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	rendered, err := h.svc.RenderPDF(c.Request.Context(), actor, id)
	if httpkit.HandleError(c, err) {
		return
	}

	if c.Query("format") == "link" && rendered.URL != "" {
		httpkit.OK(c, transport.PDFResponse{FileKey: rendered.FileKey, URL: rendered.URL})
		return
	}
	servePDFBytes(c, rendered.FileName, rendered.Data)
}

// Delete handles DELETE /api/v1/quotes/:id
func (h *Handler) Delete(c *gin.Context) {
	id, actor, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, id); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) target(c *gin.Context) (uuid.UUID, authz.Actor, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, authz.Actor{}, false
	}
	actor, ok := authz.MustGetActor(c)
	if !ok {
		return uuid.Nil, authz.Actor{}, false
	}
	return id, actor, true
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	return h.validate(c, req)
}

func (h *Handler) validate(c *gin.Context, req interface{}) bool {
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}
