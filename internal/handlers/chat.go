package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatsync/internal/blob"
	"chatsync/internal/models"
	"chatsync/internal/observability"
	"chatsync/internal/repositories"
	"chatsync/internal/session"
	"chatsync/internal/telemetry"
)

// ChatHandler exposes one-to-one conversations over HTTP. All mutating
// operations go through the session coordinator so HTTP and websocket
// surfaces share composer state and send sequencing.
type ChatHandler struct {
	sessions      *session.Manager
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	audit         *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(sessions *session.Manager, conversations repositories.ConversationRepository, users repositories.UserRepository, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		sessions:      sessions,
		conversations: conversations,
		users:         users,
		audit:         audit,
	}
}

// GetMessages returns the full ordered message set for the conversation
// with the peer.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	self := currentUser(c)
	peerID := c.Param("peer_id")

	convID, err := session.DeriveConversationID(self.ID, peerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.users.GetUser(c.Request.Context(), peerID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "peer not found"})
		return
	}

	msgs, err := h.conversations.ListMessages(c.Request.Context(), convID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage runs the two-phase send. Text arrives as a form or JSON
// field; an attachment arrives as a multipart file part. An empty send is
// accepted and does nothing.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	self := currentUser(c)
	peerID := c.Param("peer_id")

	text, fileHeader, ok := parseSendRequest(c)
	if !ok {
		return
	}

	coord, err := h.sessions.Acquire(c.Request.Context(), self, peerID)
	if err != nil {
		respondSessionError(c, err)
		return
	}
	defer h.sessions.Release(self.ID, coord)

	coord.SetText(text)
	if fileHeader != nil {
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable attachment"})
			return
		}
		defer f.Close()
		coord.AttachFile(&session.PendingFile{
			Name:        fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Reader:      f,
		})
	}

	msg, err := coord.Send(c.Request.Context())
	if err != nil {
		var uploadErr *blob.UploadError
		var appendErr *session.AppendError
		switch {
		case errors.Is(err, session.ErrSessionLocked):
			c.JSON(http.StatusLocked, gin.H{"error": "session is locked"})
		case errors.As(err, &uploadErr):
			observability.IncUpload("failure")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload attachment"})
		case errors.As(err, &appendErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		}
		return
	}
	if msg == nil {
		// Nothing to send.
		c.Status(http.StatusNoContent)
		return
	}

	observability.IncMessageSent("chat")
	if msg.FileURL != "" {
		observability.IncUpload("success")
	}
	h.audit.Emit(c.Request.Context(), telemetry.Event{
		Action:         "chat.message_sent",
		ActorID:        self.ID,
		ConversationID: coord.ConversationID(),
		RequestID:      observability.MetaFromRequest(c.Request).RequestID,
	})

	c.JSON(http.StatusCreated, msg)
}

// DeleteMessage removes an authored message. Only the sender of a message
// is eligible; store-level failures are absorbed by the coordinator.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	self := currentUser(c)
	peerID := c.Param("peer_id")
	messageID := c.Param("message_id")

	coord, err := h.sessions.Acquire(c.Request.Context(), self, peerID)
	if err != nil {
		respondSessionError(c, err)
		return
	}
	defer h.sessions.Release(self.ID, coord)

	if err := coord.Delete(c.Request.Context(), messageID); err != nil {
		switch {
		case errors.Is(err, session.ErrNotMessageSender):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete a message"})
		case errors.Is(err, session.ErrSessionLocked):
			c.JSON(http.StatusLocked, gin.H{"error": "session is locked"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		}
		return
	}

	observability.IncMessageDeleted("chat")
	h.audit.Emit(c.Request.Context(), telemetry.Event{
		Action:         "chat.message_deleted",
		ActorID:        self.ID,
		ConversationID: coord.ConversationID(),
		RequestID:      observability.MetaFromRequest(c.Request).RequestID,
	})
	c.Status(http.StatusNoContent)
}

func parseSendRequest(c *gin.Context) (string, *multipart.FileHeader, bool) {
	contentType := c.ContentType()
	if contentType == "multipart/form-data" {
		text := c.PostForm("text")
		fileHeader, err := c.FormFile("file")
		if err != nil {
			fileHeader = nil
		}
		return text, fileHeader, true
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", nil, false
	}
	return req.Text, nil, true
}

func respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "peer not found"})
	case errors.Is(err, session.ErrSelfConversation), errors.Is(err, session.ErrEmptyParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
	}
}

func currentUser(c *gin.Context) models.User {
	return models.User{
		ID:    c.GetString("userID"),
		Email: c.GetString("userEmail"),
	}
}
