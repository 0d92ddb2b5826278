package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chatsync/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository is the store adapter for conversations and their
// ordered message collections, including the live snapshot subscription.
type ConversationRepository interface {
	EnsureConversation(ctx context.Context, conversationID string, participants []string) error
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, msg models.Message) (string, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	DeleteMessage(ctx context.Context, conversationID string, messageID string) error
	SubscribeMessages(conversationID string, onSnapshot func([]models.Message)) (func(), error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db     *sqlx.DB
	stream *MessageStream
}

// NewConversationRepo constructs a ConversationRepo with its own snapshot
// stream.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	r := &ConversationRepo{db: db}
	r.stream = NewMessageStream(r.ListMessages)
	return r
}

// EnsureConversation creates the conversation document if absent. The
// insert is atomic (ON CONFLICT DO NOTHING), so concurrent first-sends from
// both participants cannot clobber each other's metadata; the existence
// check keeps repeat sends from re-issuing writes.
func (r *ConversationRepo) EnsureConversation(ctx context.Context, conversationID string, participants []string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1)`, conversationID); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, participants, last_updated) VALUES ($1, $2, NOW())
         ON CONFLICT (id) DO NOTHING`,
		conversationID, pq.StringArray(participants))
	return err
}

// GetConversation fetches a conversation document by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT id, participants, last_updated FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// AppendMessage stores a new message record and fans the updated snapshot
// out to subscribers. Messages are append-only; there is no merge or edit.
func (r *ConversationRepo) AppendMessage(ctx context.Context, conversationID string, msg models.Message) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, text, sender_id, receiver_id, timestamp, status, file_url, file_type)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, conversationID, msg.Text, msg.SenderID, msg.ReceiverID, msg.Timestamp, msg.Status, msg.FileURL, msg.FileType)
	if err != nil {
		return "", err
	}

	// The message landed; a stale last_updated is tolerable.
	_, _ = r.db.ExecContext(ctx,
		`UPDATE conversations SET last_updated=$2 WHERE id=$1`, conversationID, msg.Timestamp)

	r.stream.Notify(conversationID)
	return msg.ID, nil
}

// ListMessages returns the full ordered message set for a conversation,
// ascending by the sender-assigned timestamp.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, conversation_id, text, sender_id, receiver_id, timestamp, status, file_url, file_type
         FROM messages WHERE conversation_id=$1 ORDER BY timestamp ASC`, conversationID)
	return msgs, err
}

// DeleteMessage removes a message. Deleting an id that is already gone is
// not an error.
func (r *ConversationRepo) DeleteMessage(ctx context.Context, conversationID string, messageID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id=$1 AND id=$2`, conversationID, messageID)
	if err != nil {
		return err
	}
	r.stream.Notify(conversationID)
	return nil
}

// SubscribeMessages establishes a live snapshot subscription for the
// conversation.
func (r *ConversationRepo) SubscribeMessages(conversationID string, onSnapshot func([]models.Message)) (func(), error) {
	return r.stream.Subscribe(conversationID, onSnapshot)
}
