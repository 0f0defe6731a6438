package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yadhu-dev/library-automation-api/internal/middleware"
	"github.com/yadhu-dev/library-automation-api/internal/service"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
	"github.com/yadhu-dev/library-automation-api/pkg/response"
)

// DashboardHandler wires the overview counters to HTTP.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Library dashboard counters
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.dashboard == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
