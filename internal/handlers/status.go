package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatsync/internal/blob"
	"chatsync/internal/models"
	"chatsync/internal/observability"
	"chatsync/internal/repositories"
	"chatsync/internal/telemetry"
)

// StatusHandler manages ephemeral image statuses.
type StatusHandler struct {
	statuses repositories.StatusRepository
	blobs    blob.Store
	audit    *telemetry.AuditEmitter
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(statuses repositories.StatusRepository, blobs blob.Store, audit *telemetry.AuditEmitter) *StatusHandler {
	return &StatusHandler{statuses: statuses, blobs: blobs, audit: audit}
}

// PostStatus uploads the status image and records it. The image is
// required; an upload failure records nothing.
func (h *StatusHandler) PostStatus(c *gin.Context) {
	self := currentUser(c)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a status image is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable status image"})
		return
	}
	defer f.Close()

	path := blob.ObjectPath("statuses/"+self.ID, fileHeader.Filename)
	imageURL, err := h.blobs.Upload(c.Request.Context(), path, f, fileHeader.Size, nil)
	if err != nil {
		observability.IncUpload("failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload status image"})
		return
	}
	observability.IncUpload("success")

	status := models.Status{
		ID:        uuid.NewString(),
		UserID:    self.ID,
		ImageURL:  imageURL,
		Timestamp: time.Now().UTC(),
	}
	if err := h.statuses.AppendStatus(c.Request.Context(), status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store status"})
		return
	}

	h.audit.Emit(c.Request.Context(), telemetry.Event{
		Action:    "status.posted",
		ActorID:   self.ID,
		RequestID: observability.MetaFromRequest(c.Request).RequestID,
	})
	c.JSON(http.StatusCreated, status)
}

// ListStatuses returns all statuses in chronological order.
func (h *StatusHandler) ListStatuses(c *gin.Context) {
	statuses, err := h.statuses.ListStatuses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statuses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}
