package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chatsync/internal/auth"
	"chatsync/internal/models"
	"chatsync/internal/observability"
	"chatsync/internal/rabbitmq"
	"chatsync/internal/session"
)

// ChatWebSocketHandler streams conversation snapshots to a participant.
// Each connection holds a reference to the shared session coordinator, so
// composer progress and lock transitions reach every device of the user.
type ChatWebSocketHandler struct {
	hub      *Hub
	sessions *session.Manager
	verifier *auth.Verifier
	events   rabbitmq.Publisher
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, sessions *session.Manager, verifier *auth.Verifier, events rabbitmq.Publisher) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, sessions: sessions, verifier: verifier, events: events}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, opens or joins the session, upgrades the
// connection, and wires coordinator notifications to the socket.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	peerID := c.Param("peer_id")

	ctx, span := otel.Tracer("chatsync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	identity, err := identityFromWSRequest(c, h.verifier)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	self := models.User{ID: identity.UserID, Email: identity.Email}

	coord, err := h.sessions.Acquire(c.Request.Context(), self, peerID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrProfileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "peer not found"})
		case errors.Is(err, session.ErrSelfConversation), errors.Is(err, session.ErrEmptyParticipant):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.sessions.Release(identity.UserID, coord)
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
	roomID := coord.ConversationID()
	h.hub.Add(roomID, client)

	// The first snapshot arrived when the session opened; replay it so the
	// client never waits for the next change.
	_ = client.Send(models.ChatEvent{Type: "snapshot", Messages: coord.Messages()})

	removeListener := coord.AddListener(session.Listener{
		OnSnapshot: func(msgs []models.Message) {
			_ = client.Send(models.ChatEvent{Type: "snapshot", Messages: msgs})
		},
		OnUploadProgress: func(pct float64, active bool) {
			event := models.ChatEvent{Type: "upload_progress"}
			if active {
				p := pct
				event.Progress = &p
			}
			_ = client.Send(event)
		},
		OnLockChange: func(locked bool) {
			l := locked
			_ = client.Send(models.ChatEvent{Type: "lock", Locked: &l})
		},
	})

	// Lock the session when the identity assertion lapses mid-connection.
	var lockTimer *time.Timer
	if !identity.ExpiresAt.IsZero() {
		if d := time.Until(identity.ExpiresAt); d > 0 {
			lockTimer = time.AfterFunc(d, func() {
				coord.SetIdentity(nil)
			})
		}
	}

	observability.IncWSActive("chat")
	observability.SetActiveSessions(h.sessions.ActiveSessions())
	publishWSEvent(ctx, h.events, "chat", roomID, "ws_connect", info, "")

	go func() {
		var closeReason string
		defer func() {
			removeListener()
			if lockTimer != nil {
				lockTimer.Stop()
			}
			h.hub.Remove(roomID, client)
			h.sessions.Release(identity.UserID, coord)
			observability.SetActiveSessions(h.sessions.ActiveSessions())
			observability.DecWSActive("chat")
			publishWSEvent(ctx, h.events, "chat", roomID, "ws_disconnect", info, closeReason)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(ctx, h.events, "chat", roomID, "ws_error", info, closeReason)
				}
				return
			}
		}
	}()
}
