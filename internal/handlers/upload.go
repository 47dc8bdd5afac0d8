package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/telemetry"
)

// UploadHandler stores message attachments under the uploads directory.
// The response embeds the stored path in the "[File: name] url" body
// convention the clients already speak; the caller sends it as a regular
// file-kind message afterwards.
type UploadHandler struct {
	dir      string
	maxBytes int64
	audit    *telemetry.AuditEmitter
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(dir string, maxBytes int64, audit *telemetry.AuditEmitter) *UploadHandler {
	return &UploadHandler{dir: dir, maxBytes: maxBytes, audit: audit}
}

// Upload accepts a multipart file, size-capped.
func (h *UploadHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if file.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}

	// Stored name is random; the original name survives only in the body
	// convention, so path traversal in uploaded filenames is moot.
	storedName := uuid.NewString() + filepath.Ext(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(h.dir, storedName)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		return
	}

	url := "/uploads/" + storedName
	body := fmt.Sprintf("[File: %s] %s", file.Filename, url)

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("file uploaded (%d bytes)", file.Size), requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusCreated, gin.H{"url": url, "body": body, "kind": "file"})
}
