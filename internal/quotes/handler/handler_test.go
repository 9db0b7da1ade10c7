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

// router wires the handler without a service; every case below is rejected
// before the service would be called.
func router(authenticated bool) *gin.Engine {
	r := gin.New()
	if authenticated {
		r.Use(func(c *gin.Context) {
			c.Set(httpkit.ContextUserIDKey, uuid.New())
			c.Set(httpkit.ContextRolesKey, []string{"manager"})
		})
	}
	New(nil, validator.New()).RegisterRoutes(r.Group("/quotes"))
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestInvalidQuoteID(t *testing.T) {
	rec := do(router(true), http.MethodGet, "/quotes/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnauthenticated(t *testing.T) {
	rec := do(router(false), http.MethodPost, "/quotes/"+uuid.NewString()+"/send", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusValidation(t *testing.T) {
	r := router(true)

	rec := do(r, http.MethodPatch, "/quotes/"+uuid.NewString()+"/status", map[string]string{"status": "expired"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, msgValidationFailed, body.Error)
	assert.Equal(t, map[string]any{"status": "oneof"}, body.Details)
}

func TestCreateRejectsNegativeQuantity(t *testing.T) {
	rec := do(router(true), http.MethodPost, "/quotes", map[string]any{
		"clientId": uuid.NewString(),
		"items":    []map[string]any{{"description": "Arbeid", "quantity": -1, "unitPriceCents": 100}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "items[0].quantity")
}

func TestReopenNeedsReason(t *testing.T) {
	rec := do(router(true), http.MethodPost, "/quotes/"+uuid.NewString()+"/reopen", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsOutOfRangeLine(t *testing.T) {
	cases := []struct {
		name  string
		item  map[string]any
		field string
	}{
		{"quantity", map[string]any{"description": "Arbeid", "quantity": 1e12, "unitPriceCents": 100}, "items[0].quantity"},
		{"unit price", map[string]any{"description": "Arbeid", "quantity": 1, "unitPriceCents": int64(1e12)}, "items[0].unitPriceCents"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(router(true), http.MethodPost, "/quotes", map[string]any{
				"clientId": uuid.NewString(),
				"items":    []map[string]any{tc.item},
			})
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body httpkit.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "lte", body.Details.(map[string]any)[tc.field])
		})
	}
}

func TestDiscardGatewayRecordRoute(t *testing.T) {
	rec := do(router(true), http.MethodDelete, "/quotes/not-a-uuid/gateway-record", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router(false), http.MethodDelete, "/quotes/"+uuid.NewString()+"/gateway-record", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
