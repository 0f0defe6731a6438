package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yadhu-dev/library-automation-api/internal/service"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
	"github.com/yadhu-dev/library-automation-api/pkg/response"
)

// CirculationHandler exposes the loan-desk endpoints.
type CirculationHandler struct {
	circulation *service.CirculationService
	dashboard   *service.DashboardService
}

// NewCirculationHandler constructs CirculationHandler. The dashboard service
// is optional; when present its cache is invalidated after every successful
// issue or return.
func NewCirculationHandler(circulation *service.CirculationService, dashboard *service.DashboardService) *CirculationHandler {
	return &CirculationHandler{circulation: circulation, dashboard: dashboard}
}

// CirculationRequest is the issue and return payload.
type CirculationRequest struct {
	RollNo string `json:"roll_no" binding:"required"`
	BookID string `json:"book_id" binding:"required"`
}

// LocateStudent godoc
// @Summary Look up a student and their issued books
// @Tags Circulation
// @Produce json
// @Security BearerAuth
// @Param rollNo path string true "Roll number"
// @Success 200 {object} response.Envelope
// @Router /circulation/students/{rollNo} [get]
func (h *CirculationHandler) LocateStudent(c *gin.Context) {
	lookup, err := h.circulation.LocateStudent(c.Request.Context(), c.Param("rollNo"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lookup, nil)
}

// LocateBook godoc
// @Summary Look up a book by its tag
// @Tags Circulation
// @Produce json
// @Security BearerAuth
// @Param bookId path string true "Book tag"
// @Success 200 {object} response.Envelope
// @Router /circulation/books/{bookId} [get]
func (h *CirculationHandler) LocateBook(c *gin.Context) {
	lookup, err := h.circulation.LocateBook(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lookup, nil)
}

// Classify godoc
// @Summary Classify a scanned identifier
// @Tags Circulation
// @Produce json
// @Security BearerAuth
// @Param value query string true "Scanned identifier"
// @Success 200 {object} response.Envelope
// @Router /circulation/classify [get]
func (h *CirculationHandler) Classify(c *gin.Context) {
	value := strings.TrimSpace(c.Query("value"))
	if value == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "value query parameter is required"))
		return
	}
	kind := h.circulation.ClassifyIdentifier(value)
	response.JSON(c, http.StatusOK, gin.H{"value": value, "kind": kind}, nil)
}

// Issue godoc
// @Summary Issue a book to a student
// @Tags Circulation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body CirculationRequest true "Issue payload"
// @Success 200 {object} response.Envelope
// @Router /circulation/issue [post]
func (h *CirculationHandler) Issue(c *gin.Context) {
	var req CirculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lookup, err := h.circulation.Issue(c.Request.Context(), req.RollNo, req.BookID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, lookup, nil)
}

// Return godoc
// @Summary Take a book back from a student
// @Tags Circulation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body CirculationRequest true "Return payload"
// @Success 200 {object} response.Envelope
// @Router /circulation/return [post]
func (h *CirculationHandler) Return(c *gin.Context) {
	var req CirculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lookup, err := h.circulation.Return(c.Request.Context(), req.RollNo, req.BookID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
	response.JSON(c, http.StatusOK, lookup, nil)
}
