package ws

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chatsync/internal/auth"
	"chatsync/internal/models"
	"chatsync/internal/observability"
	"chatsync/internal/rabbitmq"
	"chatsync/internal/repositories"
)

// GroupWebSocketHandler streams group message snapshots to a member. Group
// rooms subscribe straight to the store stream; the richer session
// coordinator is a two-party concern.
type GroupWebSocketHandler struct {
	hub           *Hub
	groups        repositories.GroupRepository
	conversations repositories.ConversationRepository
	verifier      *auth.Verifier
	events        rabbitmq.Publisher
}

// NewGroupWebSocketHandler constructs a GroupWebSocketHandler.
func NewGroupWebSocketHandler(hub *Hub, groups repositories.GroupRepository, conversations repositories.ConversationRepository, verifier *auth.Verifier, events rabbitmq.Publisher) *GroupWebSocketHandler {
	return &GroupWebSocketHandler{hub: hub, groups: groups, conversations: conversations, verifier: verifier, events: events}
}

// Handle authenticates, checks membership, and streams full snapshots on
// every change.
func (h *GroupWebSocketHandler) Handle(c *gin.Context) {
	groupID := c.Param("group_id")

	ctx, span := otel.Tracer("chatsync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := identityFromWSRequest(c, h.verifier)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGroupNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "group not found"})
		return
	}
	if !group.IsMember(identity.UserID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		Email:       identity.Email,
		Meta:        observability.MetaFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)
	h.hub.Add(groupID, client)

	cancel, err := h.conversations.SubscribeMessages(groupID, func(msgs []models.Message) {
		_ = client.Send(models.ChatEvent{Type: "snapshot", Messages: msgs})
	})
	if err != nil {
		h.hub.Remove(groupID, client)
		client.Close()
		return
	}

	observability.IncWSActive("group")
	publishWSEvent(ctx, h.events, "group", groupID, "ws_connect", info, "")

	go func() {
		var closeReason string
		defer func() {
			cancel()
			h.hub.Remove(groupID, client)
			observability.DecWSActive("group")
			publishWSEvent(ctx, h.events, "group", groupID, "ws_disconnect", info, closeReason)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(ctx, h.events, "group", groupID, "ws_error", info, closeReason)
				}
				return
			}
		}
	}()
}

func identityFromWSRequest(c *gin.Context, verifier *auth.Verifier) (auth.Identity, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("token"); q != "" {
			header = "Bearer " + q
		}
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return verifier.Verify(parts[1])
}
