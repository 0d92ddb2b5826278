package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"chatsync/internal/blob"
	"chatsync/internal/models"
	"chatsync/internal/repositories"
)

// State is the coordinator lifecycle. Locked is not a State: it is an
// orthogonal overlay that rejects outgoing actions without abandoning the
// underlying subscription.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateActive
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	default:
		return "uninitialized"
	}
}

var (
	// ErrProfileNotFound means the peer profile does not exist. This is a
	// terminal exit for the session, not a retryable error.
	ErrProfileNotFound = errors.New("peer profile not found")

	// ErrSessionLocked rejects outgoing actions while no authenticated
	// identity is present.
	ErrSessionLocked = errors.New("session is locked")

	// ErrNotMessageSender rejects deleting a message authored by someone
	// else.
	ErrNotMessageSender = errors.New("message was not sent by the current user")
)

// AppendError wraps a failed durable append. The composer is left intact so
// the sender can retry; an attachment that already uploaded keeps its
// reference and is not re-uploaded on retry.
type AppendError struct {
	Err error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append message: %v", e.Err)
}

func (e *AppendError) Unwrap() error {
	return e.Err
}

// PendingFile is a user-selected attachment awaiting upload.
type PendingFile struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Listener receives coordinator notifications. Callbacks may fire from the
// goroutine performing a send or delete.
type Listener struct {
	OnSnapshot       func(messages []models.Message)
	OnUploadProgress func(pct float64, active bool)
	OnLockChange     func(locked bool)
}

// Coordinator owns one participant's view of one conversation: the live
// snapshot subscription, the composer, outgoing message sequencing, lock
// state, and delete eligibility.
type Coordinator struct {
	convID        string
	conversations repositories.ConversationRepository
	blobs         blob.Store
	now           func() time.Time

	mu           sync.Mutex
	self         models.User
	peer         models.User
	state        State
	locked       bool
	view         []models.Message
	text         string
	file         *PendingFile
	uploadedURL  string
	uploadedKind string
	progress     float64
	uploading    bool
	unsubscribe  func()
	closed       bool
	listeners    map[int]Listener
	nextListener int

	closeOnce sync.Once
}

// Open derives the conversation id, verifies the peer profile, and
// establishes the snapshot subscription. The first snapshot arrives
// synchronously, moving the session from Loading to Active.
func Open(ctx context.Context, self models.User, peerID string, users repositories.UserRepository, conversations repositories.ConversationRepository, blobs blob.Store) (*Coordinator, error) {
	convID, err := DeriveConversationID(self.ID, peerID)
	if err != nil {
		return nil, err
	}

	peer, err := users.GetUser(ctx, peerID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("fetch peer profile: %w", err)
	}

	c := &Coordinator{
		convID:        convID,
		conversations: conversations,
		blobs:         blobs,
		now:           time.Now,
		self:          self,
		peer:          peer,
		state:         StateLoading,
		listeners:     make(map[int]Listener),
	}

	unsub, err := conversations.SubscribeMessages(convID, c.onSnapshot)
	if err != nil {
		return nil, fmt.Errorf("subscribe messages: %w", err)
	}

	c.mu.Lock()
	c.unsubscribe = unsub
	c.mu.Unlock()
	return c, nil
}

// onSnapshot rebuilds the local view from the full snapshot. The view is
// always replaced wholesale and re-sorted by the sender-assigned timestamp:
// delivery order is never trusted and the sequence is never patched
// incrementally.
func (c *Coordinator) onSnapshot(msgs []models.Message) {
	ordered := make([]models.Message, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	c.mu.Lock()
	if c.closed {
		// Subscription events may race with Close; drop silently.
		c.mu.Unlock()
		return
	}
	if c.state == StateLoading {
		c.state = StateActive
	}
	c.view = ordered
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		if l.OnSnapshot != nil {
			l.OnSnapshot(ordered)
		}
	}
}

// SetIdentity re-evaluates the lock overlay against the externally supplied
// identity. A nil identity locks the session; a present identity unlocks it
// and becomes the current sender. The subscription and view are unaffected.
func (c *Coordinator) SetIdentity(user *models.User) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	wasLocked := c.locked
	if user == nil {
		c.locked = true
	} else {
		c.locked = false
		c.self = *user
	}
	changed := wasLocked != c.locked
	locked := c.locked
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		if l.OnLockChange != nil {
			l.OnLockChange(locked)
		}
	}
}

// SetText replaces the composer text.
func (c *Coordinator) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

// AttachFile selects a file for the next send, discarding any previously
// uploaded reference.
func (c *Coordinator) AttachFile(file *PendingFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = file
	c.uploadedURL = ""
	c.uploadedKind = ""
}

// Send runs the two-phase send: ensure the conversation document exists,
// upload the selected attachment if any, then append the message. A send
// with empty trimmed text and no attachment is a no-op, not an error. Text
// is never sent without its selected attachment: an upload failure aborts
// the whole send. The composer is cleared only after the append resolves.
//
// Sends are not serialized against each other; callers needing strict
// arrival order must not overlap calls.
func (c *Coordinator) Send(ctx context.Context) (*models.Message, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil
	}
	if c.locked {
		c.mu.Unlock()
		return nil, ErrSessionLocked
	}
	self := c.self
	peer := c.peer
	text := c.text
	file := c.file
	fileURL := c.uploadedURL
	fileType := c.uploadedKind
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" && file == nil {
		return nil, nil
	}

	if err := c.conversations.EnsureConversation(ctx, c.convID, []string{self.ID, peer.ID}); err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}

	if file != nil && fileURL == "" {
		path := blob.ObjectPath("chats/"+c.convID, file.Name)
		c.setUploading(true)
		url, err := c.blobs.Upload(ctx, path, file.Reader, file.Size, c.reportProgress)
		c.setUploading(false)
		if err != nil {
			// Attachment not sent: abort the whole send, keep the composer.
			return nil, err
		}
		fileURL = url
		fileType = blob.Classify(file.ContentType)

		c.mu.Lock()
		c.uploadedURL = fileURL
		c.uploadedKind = fileType
		c.mu.Unlock()
	}

	msg := models.Message{
		ConversationID: c.convID,
		Text:           text,
		SenderID:       self.ID,
		ReceiverID:     peer.ID,
		Timestamp:      c.now(),
		Status:         models.StatusSent,
		FileURL:        fileURL,
		FileType:       fileType,
	}

	id, err := c.conversations.AppendMessage(ctx, c.convID, msg)
	if err != nil {
		return nil, &AppendError{Err: err}
	}
	msg.ID = id

	c.mu.Lock()
	c.text = ""
	c.file = nil
	c.uploadedURL = ""
	c.uploadedKind = ""
	c.mu.Unlock()
	return &msg, nil
}

// CanDelete reports delete eligibility: only the author of a message may
// delete it.
func (c *Coordinator) CanDelete(msg models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return msg.SenderID == c.self.ID
}

// Delete removes an authored message. Store failures are absorbed and
// logged: no optimistic local removal happened, so there is nothing to roll
// back and the subscription re-delivers the authoritative set either way.
// Deleting an id that is no longer in the view is a no-op.
func (c *Coordinator) Delete(ctx context.Context, messageID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.locked {
		c.mu.Unlock()
		return ErrSessionLocked
	}
	self := c.self
	var target *models.Message
	for i := range c.view {
		if c.view[i].ID == messageID {
			target = &c.view[i]
			break
		}
	}
	c.mu.Unlock()

	if target == nil {
		return nil
	}
	if target.SenderID != self.ID {
		return ErrNotMessageSender
	}

	if err := c.conversations.DeleteMessage(ctx, c.convID, messageID); err != nil {
		log.Printf("delete message %s in %s: %v", messageID, c.convID, err)
	}
	return nil
}

// AddListener registers a listener and returns its removal function.
func (c *Coordinator) AddListener(l Listener) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close releases the subscription exactly once. In-flight uploads and
// appends are not cancelled; their completion handlers tolerate the closed
// session and drop silently.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		unsub := c.unsubscribe
		c.listeners = make(map[int]Listener)
		c.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}

// ConversationID returns the derived conversation id.
func (c *Coordinator) ConversationID() string {
	return c.convID
}

// Peer returns the peer profile fetched at open.
func (c *Coordinator) Peer() models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// State returns the lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Locked reports whether the lock overlay is active.
func (c *Coordinator) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// Messages returns a copy of the current ordered view.
func (c *Coordinator) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.view))
	copy(out, c.view)
	return out
}

// Text returns the composer text.
func (c *Coordinator) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// HasAttachment reports whether a file is selected for the next send.
func (c *Coordinator) HasAttachment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file != nil
}

// UploadProgress returns the pending-upload indicator: the last reported
// percentage and whether an upload is in flight.
func (c *Coordinator) UploadProgress() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress, c.uploading
}

func (c *Coordinator) setUploading(active bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.uploading = active
	if !active {
		c.progress = 0
	}
	pct := c.progress
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		if l.OnUploadProgress != nil {
			l.OnUploadProgress(pct, active)
		}
	}
}

func (c *Coordinator) reportProgress(pct float64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if pct < c.progress {
		pct = c.progress
	}
	c.progress = pct
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		if l.OnUploadProgress != nil {
			l.OnUploadProgress(pct, true)
		}
	}
}

// snapshotListeners must be called with c.mu held.
func (c *Coordinator) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		out = append(out, l)
	}
	return out
}
