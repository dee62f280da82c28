package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBodyLimitRouter(limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(limit))
	r.POST("/api/v1/catalog/sync", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "read failed")
			return
		}
		c.String(http.StatusAccepted, "%d", len(body))
	})
	return r
}

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		chunked    bool
		wantStatus int
		wantBody   string
	}{
		{"empty body", "", false, http.StatusAccepted, "0"},
		{"at the limit", strings.Repeat("a", 16), false, http.StatusAccepted, "16"},
		{"declared length over the limit", strings.Repeat("a", 17), false, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge},
		{"chunked body under the limit", "{}", true, http.StatusAccepted, "2"},
		{"chunked body over the limit", strings.Repeat("a", 64), true, http.StatusRequestEntityTooLarge, "read failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newBodyLimitRouter(16)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/sync", bytes.NewBufferString(tt.body))
			if tt.chunked {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestBodyLimit_EchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	r.Use(BodyLimit(4))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)
}
