package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quote_pipeline_backend/platform/httpkit"
	"quote_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	val := validator.New()
	require.NoError(t, RegisterValidators(val))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextRolesKey, []string{"manager"})
	})
	New(nil, val).RegisterRoutes(r.Group("/clients"))
	return r
}

func TestUnknownStageRejected(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"stage": "won"})
	req := httptest.NewRequest(http.MethodPatch, "/clients/"+uuid.NewString()+"/stage", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "pipeline_stage")
}

func TestInvalidPhoneRejected(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"name": "Jan", "phone": "12"})
	req := httptest.NewRequest(http.MethodPost, "/clients", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phone"`)
}

func TestListRejectsUnknownSort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/clients?sortBy=email", nil)
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
