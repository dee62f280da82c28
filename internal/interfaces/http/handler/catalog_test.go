package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/catalogsync"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCatalogTrigger struct {
	mu        sync.Mutex
	err       error
	triggered int
	stats     scheduler.RunnerStats
}

func (m *mockCatalogTrigger) TriggerNow() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err == nil {
		m.triggered++
	}
	return m.err
}

func (m *mockCatalogTrigger) Stats() scheduler.RunnerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

type staticReports struct {
	report *catalogsync.SyncReport
}

func (s staticReports) LastReport() *catalogsync.SyncReport { return s.report }

func newCatalogRouter(h *CatalogHandler) *gin.Engine {
	r := gin.New()
	r.POST("/catalog/sync", h.TriggerSync)
	r.GET("/catalog/sync", h.SyncStatus)
	return r
}

func TestCatalogHandler_TriggerSync(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"accepted", nil, http.StatusAccepted, ""},
		{"already running", scheduler.ErrJobAlreadyRunning, http.StatusConflict, dto.ErrCodeSyncInProgress},
		{"scheduler stopped", scheduler.ErrSchedulerNotRunning, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable},
		{"unexpected error", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &mockCatalogTrigger{err: tt.err, stats: scheduler.RunnerStats{Running: true, Busy: tt.err == nil}}
			router := newCatalogRouter(NewCatalogHandler(trigger, nil))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/catalog/sync", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantCode == "" {
				var body APIResponse[CatalogSyncStatusResponse]
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.True(t, body.Data.Running)
				assert.True(t, body.Data.Busy)
				assert.Equal(t, 1, trigger.triggered)
				return
			}
			assert.Equal(t, tt.wantCode, decodeResponse(t, w).Error.Code)
		})
	}
}

func TestCatalogHandler_SyncStatus(t *testing.T) {
	lastRun := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	trigger := &mockCatalogTrigger{stats: scheduler.RunnerStats{
		Running:      true,
		TicksRun:     4,
		TicksSkipped: 1,
		LastTickAt:   &lastRun,
		LastError:    "fetch products: admin returned 502",
	}}
	reports := staticReports{report: &catalogsync.SyncReport{CategoriesSynced: 5, ProductsSynced: 40, ProductsSkipped: 2}}

	w := httptest.NewRecorder()
	newCatalogRouter(NewCatalogHandler(trigger, reports)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/catalog/sync", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body APIResponse[CatalogSyncStatusResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(4), body.Data.TicksRun)
	assert.Equal(t, int64(1), body.Data.TicksSkipped)
	require.NotNil(t, body.Data.LastRunAt)
	assert.True(t, lastRun.Equal(*body.Data.LastRunAt))
	assert.Equal(t, "fetch products: admin returned 502", body.Data.LastError)
	require.NotNil(t, body.Data.LastReport)
	assert.Equal(t, 40, body.Data.LastReport.ProductsSynced)
	assert.Zero(t, trigger.triggered)
}

func TestCatalogHandler_Disabled(t *testing.T) {
	router := newCatalogRouter(NewCatalogHandler(nil, nil))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, "/catalog/sync", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, method)
		assert.Equal(t, dto.ErrCodeServiceUnavailable, decodeResponse(t, w).Error.Code)
	}
}
