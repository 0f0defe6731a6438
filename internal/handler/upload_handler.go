package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yadhu-dev/library-automation-api/pkg/config"
	appErrors "github.com/yadhu-dev/library-automation-api/pkg/errors"
	"github.com/yadhu-dev/library-automation-api/pkg/response"
	"github.com/yadhu-dev/library-automation-api/pkg/storage"
)

// UploadHandler stores student and book photos on local disk.
type UploadHandler struct {
	store *storage.LocalStorage
	cfg   config.UploadsConfig
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(store *storage.LocalStorage, cfg config.UploadsConfig) *UploadHandler {
	return &UploadHandler{store: store, cfg: cfg}
}

// Photo godoc
// @Summary Upload a profile or cover photo
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image file"
// @Success 201 {object} response.Envelope
// @Router /uploads/photos [post]
func (h *UploadHandler) Photo(c *gin.Context) {
	if h.store == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "uploads are disabled"))
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field is required"))
		return
	}
	if h.cfg.MaxFileSizeBytes > 0 && file.Size > h.cfg.MaxFileSizeBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds the size limit"))
		return
	}
	contentType := file.Header.Get("Content-Type")
	if len(h.cfg.AllowedMIMEs) > 0 && !h.allowed(contentType) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported content type %q", contentType)))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close()

	name := fmt.Sprintf("photos/%s%s", uuid.NewString(), strings.ToLower(filepath.Ext(file.Filename)))
	if _, err := h.store.SaveStream(name, src); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"photo_url": "/static/" + name}, nil)
}

func (h *UploadHandler) allowed(contentType string) bool {
	for _, mime := range h.cfg.AllowedMIMEs {
		if strings.EqualFold(strings.TrimSpace(mime), contentType) {
			return true
		}
	}
	return false
}
