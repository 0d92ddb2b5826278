package observability

import "time"

// EventEnvelope frames an event published to the broker exchange. Consumers
// route on EventType and dispatch on EventName.
type EventEnvelope struct {
	EventType  string `json:"event_type"`
	EventName  string `json:"event_name"`
	OccurredAt string `json:"occurred_at"`
	Payload    any    `json:"payload"`
}

// NewEventEnvelope stamps the envelope with the publish time.
func NewEventEnvelope(eventType, eventName string, payload any) EventEnvelope {
	return EventEnvelope{
		EventType:  eventType,
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
}

// TraceHeaders carries request correlation onto a published event. Empty
// values are omitted rather than sent as blank headers.
func TraceHeaders(meta RequestMeta, traceID string) map[string]string {
	headers := map[string]string{}
	if meta.RequestID != "" {
		headers["x-request-id"] = meta.RequestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
