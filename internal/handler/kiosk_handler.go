package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yadhu-dev/library-automation-api/internal/kiosk"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
	"github.com/yadhu-dev/library-automation-api/pkg/response"
)

// KioskHandler bridges the scan pipeline and the device-control agent to
// kiosk screens.
type KioskHandler struct {
	router *kiosk.Router
	agent  *kiosk.Agent
}

// NewKioskHandler constructs KioskHandler. Both collaborators may be nil
// when the kiosk is disabled; the endpoints then report unavailability.
func NewKioskHandler(router *kiosk.Router, agent *kiosk.Agent) *KioskHandler {
	return &KioskHandler{router: router, agent: agent}
}

type kioskModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type kioskConnectRequest struct {
	Port string `json:"port" binding:"required"`
}

// Events godoc
// @Summary Stream scan events over SSE
// @Tags Kiosk
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200
// @Router /kiosk/events [get]
func (h *KioskHandler) Events(c *gin.Context) {
	if h.router == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "kiosk is disabled"))
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "streaming unsupported"))
		return
	}

	events, cancel := h.router.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: scan\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// State godoc
// @Summary Current scan pipeline state
// @Tags Kiosk
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /kiosk/state [get]
func (h *KioskHandler) State(c *gin.Context) {
	if h.router == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "kiosk is disabled"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"state": h.router.State()}, nil)
}

// SetMode godoc
// @Summary Switch the RFID reader mode
// @Tags Kiosk
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body kioskModeRequest true "Reader mode (read or write)"
// @Success 202
// @Router /kiosk/mode [post]
func (h *KioskHandler) SetMode(c *gin.Context) {
	if h.agent == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "kiosk is disabled"))
		return
	}
	var req kioskModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode != "read" && mode != "write" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "mode must be read or write"))
		return
	}
	h.agent.NotifyMode(mode)
	c.Status(http.StatusAccepted)
}

// StopRead godoc
// @Summary Stop the reader's read loop
// @Tags Kiosk
// @Security BearerAuth
// @Success 202
// @Router /kiosk/stop-read [post]
func (h *KioskHandler) StopRead(c *gin.Context) {
	if h.agent == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "kiosk is disabled"))
		return
	}
	h.agent.NotifyStopRead()
	c.Status(http.StatusAccepted)
}

// StopWrite godoc
// @Summary Stop the reader's write loop
// @Tags Kiosk
// @Security BearerAuth
// @Success 202
// @Router /kiosk/stop-write [post]
func (h *KioskHandler) StopWrite(c *gin.Context) {
	if h.agent == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "kiosk is disabled"))
		return
	}
	h.agent.NotifyStopWrite()
	c.Status(http.StatusAccepted)
}

// Connect godoc
// @Summary Ask the agent to open a serial port
// @Tags Kiosk
// @Accept json
// @Security BearerAuth
// @Param payload body kioskConnectRequest true "Serial port"
// @Success 202
// @Router /kiosk/connect [post]
func (h *KioskHandler) Connect(c *gin.Context) {
	if h.agent == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "kiosk is disabled"))
		return
	}
	var req kioskConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	h.agent.NotifyConnect(req.Port)
	c.Status(http.StatusAccepted)
}

// Disconnect godoc
// @Summary Ask the agent to release the reader
// @Tags Kiosk
// @Security BearerAuth
// @Success 202
// @Router /kiosk/disconnect [post]
func (h *KioskHandler) Disconnect(c *gin.Context) {
	if h.agent == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "kiosk is disabled"))
		return
	}
	h.agent.NotifyDisconnect()
	c.Status(http.StatusAccepted)
}

// Ports godoc
// @Summary List serial ports visible to the agent
// @Tags Kiosk
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /kiosk/ports [get]
func (h *KioskHandler) Ports(c *gin.Context) {
	if h.agent == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "kiosk is disabled"))
		return
	}
	ports, err := h.agent.Ports(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "device agent unavailable"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ports": ports}, nil)
}
