package webhook

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"quote_pipeline_backend/internal/authz"
	"quote_pipeline_backend/platform/httpkit"
	"quote_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	maxFormBytes   = 1 << 20
	maxFieldLength = 5000
	maxFields      = 100
)

// Handler serves the webhook endpoints.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// HandleFormSubmission captures a form post as a prospect client.
// POST /api/v1/webhook/forms
func (h *Handler) HandleFormSubmission(c *gin.Context) {
	fields, ok := parseFormFields(c)
	if !ok {
		return
	}

	keyID, _ := c.Get(contextKeyID)
	id, _ := keyID.(uuid.UUID)

	resp, err := h.service.ProcessFormSubmission(c.Request.Context(), FormSubmission{
		Fields:       fields,
		SourceDomain: c.GetString(contextSourceHost),
		APIKeyID:     id,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, resp)
}

// parseFormFields accepts JSON objects as well as urlencoded and multipart forms.
func parseFormFields(c *gin.Context) (map[string]string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFormBytes)
	fields := map[string]string{}

	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var raw map[string]any
		if err := json.NewDecoder(c.Request.Body).Decode(&raw); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unable to parse form data", nil)
			return nil, false
		}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				fields[k] = s
			}
		}
	} else {
		if err := c.Request.ParseMultipartForm(maxFormBytes); err != nil {
			if err := c.Request.ParseForm(); err != nil {
				httpkit.Error(c, http.StatusBadRequest, "unable to parse form data", nil)
				return nil, false
			}
		}
		for k, values := range c.Request.PostForm {
			if len(values) > 0 {
				fields[k] = values[0]
			}
		}
	}

	if len(fields) == 0 {
		httpkit.Error(c, http.StatusBadRequest, "no form data received", nil)
		return nil, false
	}
	if len(fields) > maxFields {
		httpkit.Error(c, http.StatusBadRequest, "too many form fields", nil)
		return nil, false
	}
	for k, v := range fields {
		if len(v) > maxFieldLength {
			fields[k] = v[:maxFieldLength]
		}
	}
	return fields, true
}

// CreateAPIKeyRequest is the request body for creating a new API key.
type CreateAPIKeyRequest struct {
	Name           string   `json:"name" validate:"required,min=1,max=100"`
	AllowedDomains []string `json:"allowedDomains" validate:"max=20,dive,max=200"`
}

// APIKeyResponse is returned when listing or creating API keys.
type APIKeyResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	KeyPrefix      string    `json:"keyPrefix"`
	AllowedDomains []string  `json:"allowedDomains"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      string    `json:"createdAt"`
}

// CreateAPIKeyResponse includes the plaintext key (shown only once).
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

func toAPIKeyResponse(k APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:             k.ID,
		Name:           k.Name,
		KeyPrefix:      k.KeyPrefix,
		AllowedDomains: k.AllowedDomains,
		IsActive:       k.IsActive,
		CreatedAt:      k.CreatedAt.Format(time.RFC3339),
	}
}

// HandleCreateAPIKey creates a new webhook API key.
// POST /api/v1/admin/webhook/keys
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.FieldErrors(err))
		return
	}

	actor, ok := authz.MustGetActor(c)
	if !ok {
		return
	}

	key, plaintext, err := h.service.CreateAPIKey(c.Request.Context(), actor, req.Name, req.AllowedDomains)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, CreateAPIKeyResponse{APIKeyResponse: toAPIKeyResponse(key), Key: plaintext})
}

// HandleListAPIKeys lists webhook API keys.
// GET /api/v1/admin/webhook/keys
func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	actor, ok := authz.MustGetActor(c)
	if !ok {
		return
	}

	keys, err := h.service.ListAPIKeys(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k))
	}
	httpkit.OK(c, out)
}

// HandleRevokeAPIKey deactivates a webhook API key.
// DELETE /api/v1/admin/webhook/keys/:keyId
func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key id", nil)
		return
	}

	actor, ok := authz.MustGetActor(c)
	if !ok {
		return
	}

	if err := h.service.RevokeAPIKey(c.Request.Context(), actor, keyID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}
