package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yadhu-dev/library-automation-api/internal/models"
	"github.com/yadhu-dev/library-automation-api/internal/service"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
	"github.com/yadhu-dev/library-automation-api/pkg/response"
)

// BookHandler exposes catalogue endpoints.
type BookHandler struct {
	books *service.BookService
}

// NewBookHandler constructs BookHandler.
func NewBookHandler(books *service.BookService) *BookHandler {
	return &BookHandler{books: books}
}

// List godoc
// @Summary List catalogue entries
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by title, author or tag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *BookHandler) List(c *gin.Context) {
	var filter models.BookFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	books, pagination, err := h.books.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, books, pagination)
}

// Create godoc
// @Summary Add a catalogue entry
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateBookRequest true "Book payload"
// @Success 201 {object} response.Envelope
// @Router /books [post]
func (h *BookHandler) Create(c *gin.Context) {
	var req service.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, book)
}

// Detail godoc
// @Summary Get a book with current holders
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param bookId path string true "Book tag"
// @Success 200 {object} response.Envelope
// @Router /books/{bookId} [get]
func (h *BookHandler) Detail(c *gin.Context) {
	detail, err := h.books.Detail(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
