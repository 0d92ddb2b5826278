package session

import (
	"context"
	"sync"

	"chatsync/internal/blob"
	"chatsync/internal/models"
	"chatsync/internal/repositories"
)

// Manager hands out one refcounted Coordinator per (participant,
// conversation) pair so that HTTP sends and websocket subscribers share a
// single composer and one underlying store subscription. It replaces the
// module-level singleton connection of old with injected, lifecycle-managed
// state.
type Manager struct {
	users         repositories.UserRepository
	conversations repositories.ConversationRepository
	blobs         blob.Store

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	coord *Coordinator
	refs  int
}

// NewManager constructs a Manager.
func NewManager(users repositories.UserRepository, conversations repositories.ConversationRepository, blobs blob.Store) *Manager {
	return &Manager{
		users:         users,
		conversations: conversations,
		blobs:         blobs,
		sessions:      make(map[string]*managedSession),
	}
}

// Acquire returns the coordinator for (self, peer), opening it on first
// use. Every Acquire must be paired with a Release.
func (m *Manager) Acquire(ctx context.Context, self models.User, peerID string) (*Coordinator, error) {
	convID, err := DeriveConversationID(self.ID, peerID)
	if err != nil {
		return nil, err
	}
	key := sessionKey(self.ID, convID)

	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		s.refs++
		m.mu.Unlock()
		return s.coord, nil
	}
	m.mu.Unlock()

	coord, err := Open(ctx, self, peerID, m.users, m.conversations, m.blobs)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		// Lost the race to another opener; keep theirs.
		s.refs++
		m.mu.Unlock()
		coord.Close()
		return s.coord, nil
	}
	m.sessions[key] = &managedSession{coord: coord, refs: 1}
	m.mu.Unlock()
	return coord, nil
}

// Release drops one reference; the last release closes the coordinator and
// tears down its subscription.
func (m *Manager) Release(selfID string, coord *Coordinator) {
	if coord == nil {
		return
	}
	key := sessionKey(selfID, coord.ConversationID())

	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, key)
	m.mu.Unlock()

	s.coord.Close()
}

// ActiveSessions reports how many coordinators are open.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll tears down every open session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.coord.Close()
	}
}

func sessionKey(selfID, conversationID string) string {
	return selfID + "\x00" + conversationID
}
