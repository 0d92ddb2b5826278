package ws

import (
	"time"

	"chatsync/internal/observability"
)

// ConnInfo is the per-connection identity and correlation snapshot captured
// at handshake time. It rides along with every lifecycle event the
// connection publishes.
type ConnInfo struct {
	ConnID      string
	UserID      string
	Email       string
	Meta        observability.RequestMeta
	TraceID     string
	ConnectedAt time.Time
}
