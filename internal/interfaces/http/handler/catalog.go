package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/catalogsync"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// CatalogSyncTrigger starts catalog syncs and reports the sync job state
type CatalogSyncTrigger interface {
	TriggerNow() error
	Stats() scheduler.RunnerStats
}

// CatalogReportProvider returns the last catalog sync report
type CatalogReportProvider interface {
	LastReport() *catalogsync.SyncReport
}

// CatalogSyncStatusResponse describes the catalog sync job
type CatalogSyncStatusResponse struct {
	Running      bool                    `json:"running"`
	Busy         bool                    `json:"busy"`
	TicksRun     int64                   `json:"ticksRun"`
	TicksSkipped int64                   `json:"ticksSkipped"`
	LastRunAt    *time.Time              `json:"lastRunAt,omitempty"`
	LastError    string                  `json:"lastError,omitempty"`
	LastReport   *catalogsync.SyncReport `json:"lastReport,omitempty"`
}

// CatalogHandler triggers and reports catalog mirror syncs
type CatalogHandler struct {
	BaseHandler
	trigger CatalogSyncTrigger
	reports CatalogReportProvider
}

// NewCatalogHandler creates a new CatalogHandler. A nil trigger means the
// catalog mirror is disabled.
func NewCatalogHandler(trigger CatalogSyncTrigger, reports CatalogReportProvider) *CatalogHandler {
	return &CatalogHandler{trigger: trigger, reports: reports}
}

// TriggerSync godoc
//
//	@Summary		Trigger a catalog sync
//	@Description	Starts a catalog sync in the background
//	@Tags			catalog
//	@Produce		json
//	@Success		202	{object}	APIResponse[CatalogSyncStatusResponse]
//	@Failure		409	{object}	dto.Response{error=dto.ErrorInfo}
//	@Failure		503	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/catalog/sync [post]
func (h *CatalogHandler) TriggerSync(c *gin.Context) {
	if h.trigger == nil {
		h.ServiceUnavailable(c, dto.ErrCodeServiceUnavailable, "Catalog sync is disabled")
		return
	}

	err := h.trigger.TriggerNow()
	switch {
	case errors.Is(err, scheduler.ErrJobAlreadyRunning):
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeSyncInProgress), dto.ErrCodeSyncInProgress, "A catalog sync is already running")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.ServiceUnavailable(c, dto.ErrCodeServiceUnavailable, "Catalog sync scheduler is not running")
	case err != nil:
		h.HandleError(c, err)
	default:
		h.Accepted(c, h.status())
	}
}

// SyncStatus godoc
//
//	@Summary		Get catalog sync status
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	APIResponse[CatalogSyncStatusResponse]
//	@Failure		503	{object}	dto.Response{error=dto.ErrorInfo}
//	@Router			/catalog/sync [get]
func (h *CatalogHandler) SyncStatus(c *gin.Context) {
	if h.trigger == nil {
		h.ServiceUnavailable(c, dto.ErrCodeServiceUnavailable, "Catalog sync is disabled")
		return
	}
	h.Success(c, h.status())
}

func (h *CatalogHandler) status() CatalogSyncStatusResponse {
	st := h.trigger.Stats()
	resp := CatalogSyncStatusResponse{
		Running:      st.Running,
		Busy:         st.Busy,
		TicksRun:     st.TicksRun,
		TicksSkipped: st.TicksSkipped,
		LastRunAt:    st.LastTickAt,
		LastError:    st.LastError,
	}
	if h.reports != nil {
		resp.LastReport = h.reports.LastReport()
	}
	return resp
}
