package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	"github.com/yadhu-dev/library-automation-api/internal/service"
	"github.com/yadhu-dev/library-automation-api/pkg/response"
)

// TransactionHandler exposes the circulation audit trail.
type TransactionHandler struct {
	transactions *service.TransactionService
}

// NewTransactionHandler constructs TransactionHandler.
func NewTransactionHandler(transactions *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// List godoc
// @Summary List circulation transactions
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Filter by roll number"
// @Param bookId query string false "Filter by book tag"
// @Param action query string false "Filter by action (issue or return)"
// @Param from query string false "Start of range (RFC 3339)"
// @Param to query string false "End of range (RFC 3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	var filter models.TransactionFilter
	filter.StudentID = strings.TrimSpace(c.Query("studentId"))
	filter.BookID = strings.TrimSpace(c.Query("bookId"))
	filter.Action = strings.TrimSpace(c.Query("action"))
	if from := c.Query("from"); from != "" {
		if parsed, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &parsed
		}
	}
	if to := c.Query("to"); to != "" {
		if parsed, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &parsed
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	transactions, pagination, err := h.transactions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transactions, pagination)
}
