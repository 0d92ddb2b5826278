package models

import "time"

// StatusSent is the only message status this system ever produces. There is
// no delivered/read transition.
const StatusSent = "sent"

// Message is a single entry in a conversation. Timestamp is the sender's
// clock at send time, not server time, and the authoritative ordering key.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"-"`
	Text           string    `db:"text" json:"text"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	ReceiverID     string    `db:"receiver_id" json:"receiverId"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
	Status         string    `db:"status" json:"status"`
	FileURL        string    `db:"file_url" json:"fileUrl,omitempty"`
	FileType       string    `db:"file_type" json:"fileType,omitempty"`
}

// Attachment returns the tagged attachment variant for the message.
func (m Message) Attachment() Attachment {
	return attachmentFromWire(m.FileURL, m.FileType)
}

// ChatEvent is pushed over websocket connections subscribed to a
// conversation. Snapshot events always carry the full ordered message set.
type ChatEvent struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages,omitempty"`
	Progress *float64  `json:"progress,omitempty"`
	Locked   *bool     `json:"locked,omitempty"`
}
