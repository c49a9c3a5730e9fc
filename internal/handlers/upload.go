package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-ingest/internal/ingest"
	"github.com/codebuildervaibhav/video-ingest/internal/transcription"
)

// UploadHandler handles video file uploads
type UploadHandler struct {
	orchestrator *ingest.Orchestrator
	maxSizeMB    int
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(orchestrator *ingest.Orchestrator, maxSizeMB int) *UploadHandler {
	return &UploadHandler{
		orchestrator: orchestrator,
		maxSizeMB:    maxSizeMB,
	}
}

// Handle processes the upload request
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	// Validate size and format before any hashing or storage work
	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}
	if file.Size == 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "Empty file",
			"code":  "ERR_EMPTY_FILE",
		})
	}

	mimeType := file.Header.Get("Content-Type")
	if !ValidateVideoUpload(file.Filename, mimeType) {
		return c.Status(400).JSON(fiber.Map{
			"error": "Unsupported video format",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	// Content identity needs the whole file, so buffer it fully
	src, err := file.Open()
	if err != nil {
		log.Printf("Failed to open uploaded file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_READ_FAILED",
		})
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		log.Printf("Failed to read uploaded file: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_READ_FAILED",
		})
	}

	result, err := h.orchestrator.HandleUpload(c.Context(), content, file.Filename, file.Size, mimeType)
	if err != nil {
		return h.uploadError(c, err)
	}

	return c.JSON(result)
}

// uploadError maps workflow errors onto HTTP responses.
func (h *UploadHandler) uploadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ingest.ErrInvalidInput) {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_INPUT",
		})
	}

	var tfe *ingest.TranscriptionFailedError
	if errors.As(err, &tfe) {
		// The video is stored and usable; only the transcript is missing.
		status := 503
		code := "ERR_TRANSCRIPTION_EXHAUSTED"
		var terr *transcription.Error
		if errors.As(tfe.Err, &terr) && terr.Terminal {
			status = 422
			code = "ERR_TRANSCRIPTION_TERMINAL"
		}
		return c.Status(status).JSON(fiber.Map{
			"error":        "Transcription failed, video stored without subtitle",
			"code":         code,
			"video_id":     tfe.VideoID,
			"is_duplicate": tfe.IsDuplicate,
		})
	}

	log.Printf("Upload failed: %v", err)
	return c.Status(500).JSON(fiber.Map{
		"error": "Failed to store upload",
		"code":  "ERR_STORAGE",
	})
}

// ValidateVideoUpload checks the declared mime type and file extension
// against the supported video formats.
func ValidateVideoUpload(filename, mimeType string) bool {
	if strings.HasPrefix(mimeType, "video/") {
		return true
	}

	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v", ".mpeg", ".mpg"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
