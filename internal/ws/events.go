package ws

import (
	"context"
	"time"

	"chatsync/internal/observability"
	"chatsync/internal/rabbitmq"
)

func wsRoutingKey(kind string) string {
	if kind == "group" {
		return "ws_events.groups"
	}
	return "ws_events.chats"
}

func publishWSEvent(ctx context.Context, publisher rabbitmq.Publisher, kind, roomID, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(kind, event)
	if publisher == nil {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"room_id":     roomID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.Meta.DeviceID,
			"ip":        info.Meta.IP,
		},
	}

	_ = publisher.Publish(ctx, wsRoutingKey(kind),
		observability.NewEventEnvelope("ws_events", event, payload),
		observability.TraceHeaders(info.Meta, info.TraceID))
}
