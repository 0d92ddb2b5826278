package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"chatsync/internal/blob"
	"chatsync/internal/models"
	"chatsync/internal/observability"
	"chatsync/internal/repositories"
	"chatsync/internal/telemetry"
	"chatsync/internal/ws"
)

// GroupHandler manages group conversations. Group messages reuse the
// conversation store with the group id as conversation id and no receiver.
type GroupHandler struct {
	groups        repositories.GroupRepository
	conversations repositories.ConversationRepository
	blobs         blob.Store
	hub           *ws.Hub
	audit         *telemetry.AuditEmitter
}

// NewGroupHandler builds a GroupHandler.
func NewGroupHandler(groups repositories.GroupRepository, conversations repositories.ConversationRepository, blobs blob.Store, hub *ws.Hub, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{
		groups:        groups,
		conversations: conversations,
		blobs:         blobs,
		hub:           hub,
		audit:         audit,
	}
}

// CreateGroup creates a group from a multipart form carrying the name,
// the member list, and an optional group image. The image is uploaded
// before the group record is written; an upload failure aborts creation.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	self := currentUser(c)

	name := strings.TrimSpace(c.PostForm("name"))
	members := normalizeMembers(c.PostFormArray("members"), self.ID)
	if name == "" || len(members) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide a group name and at least one other member"})
		return
	}

	imageURL := ""
	if fileHeader, err := c.FormFile("image"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable group image"})
			return
		}
		defer f.Close()

		path := blob.ObjectPath("group_images", fileHeader.Filename)
		imageURL, err = h.blobs.Upload(c.Request.Context(), path, f, fileHeader.Size, nil)
		if err != nil {
			observability.IncUpload("failure")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload group image"})
			return
		}
		observability.IncUpload("success")
	}

	group := models.Group{
		ID:        uuid.NewString(),
		Name:      name,
		Members:   pq.StringArray(members),
		ImageURL:  imageURL,
		AdminID:   self.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.groups.CreateGroup(c.Request.Context(), group); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	h.audit.Emit(c.Request.Context(), telemetry.Event{
		Action:         "group.created",
		ActorID:        self.ID,
		ConversationID: group.ID,
		RequestID:      observability.MetaFromRequest(c.Request).RequestID,
	})
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns the groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	self := currentUser(c)

	groups, err := h.groups.ListGroupsForUser(c.Request.Context(), self.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetMessages returns the ordered message set of a group the caller is a
// member of.
func (h *GroupHandler) GetMessages(c *gin.Context) {
	self := currentUser(c)

	group, ok := h.requireMember(c, self.ID)
	if !ok {
		return
	}

	msgs, err := h.conversations.ListMessages(c.Request.Context(), group.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage appends a message to a group conversation. Upload progress
// is broadcast to the group room; an upload failure aborts the whole send
// so nothing reaches the conversation.
func (h *GroupHandler) SendMessage(c *gin.Context) {
	self := currentUser(c)

	group, ok := h.requireMember(c, self.ID)
	if !ok {
		return
	}

	text, fileHeader, ok := parseSendRequest(c)
	if !ok {
		return
	}
	if strings.TrimSpace(text) == "" && fileHeader == nil {
		c.Status(http.StatusNoContent)
		return
	}

	fileURL := ""
	fileType := ""
	if fileHeader != nil {
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable attachment"})
			return
		}
		defer f.Close()

		contentType := fileHeader.Header.Get("Content-Type")
		path := blob.ObjectPath("groups/"+group.ID, fileHeader.Filename)
		fileURL, err = h.blobs.Upload(c.Request.Context(), path, f, fileHeader.Size, func(pct float64) {
			p := pct
			h.hub.Broadcast(group.ID, models.ChatEvent{Type: "upload_progress", Progress: &p})
		})
		h.hub.Broadcast(group.ID, models.ChatEvent{Type: "upload_progress"})
		if err != nil {
			observability.IncUpload("failure")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload attachment"})
			return
		}
		observability.IncUpload("success")
		fileType = blob.Classify(contentType)
	}

	msg := models.Message{
		ConversationID: group.ID,
		Text:           text,
		SenderID:       self.ID,
		ReceiverID:     "",
		Timestamp:      time.Now().UTC(),
		Status:         models.StatusSent,
		FileURL:        fileURL,
		FileType:       fileType,
	}
	id, err := h.conversations.AppendMessage(c.Request.Context(), group.ID, msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	msg.ID = id

	observability.IncMessageSent("group")
	h.audit.Emit(c.Request.Context(), telemetry.Event{
		Action:         "group.message_sent",
		ActorID:        self.ID,
		ConversationID: group.ID,
		RequestID:      observability.MetaFromRequest(c.Request).RequestID,
	})
	c.JSON(http.StatusCreated, msg)
}

// DeleteMessage removes an authored group message. Deleting a message
// that is already gone is a no-op.
func (h *GroupHandler) DeleteMessage(c *gin.Context) {
	self := currentUser(c)
	messageID := c.Param("message_id")

	group, ok := h.requireMember(c, self.ID)
	if !ok {
		return
	}

	msgs, err := h.conversations.ListMessages(c.Request.Context(), group.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	for _, m := range msgs {
		if m.ID != messageID {
			continue
		}
		if m.SenderID != self.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete a message"})
			return
		}
		if err := h.conversations.DeleteMessage(c.Request.Context(), group.ID, messageID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
			return
		}
		observability.IncMessageDeleted("group")
		break
	}

	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) requireMember(c *gin.Context, userID string) (models.Group, bool) {
	groupID := c.Param("group_id")

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "group not found"})
		return models.Group{}, false
	}
	if !group.IsMember(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return models.Group{}, false
	}
	return group, true
}

// normalizeMembers deduplicates the submitted member list and guarantees
// the creator is included.
func normalizeMembers(submitted []string, creatorID string) []string {
	seen := make(map[string]bool, len(submitted)+1)
	members := make([]string, 0, len(submitted)+1)
	for _, raw := range submitted {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			members = append(members, id)
		}
	}
	if !seen[creatorID] {
		members = append(members, creatorID)
	}
	return members
}
