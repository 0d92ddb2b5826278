package repositories

import (
	"context"
	"log"
	"sync"
	"time"

	"chatsync/internal/models"
)

// snapshotRetryLimit bounds reload attempts after a failed fan-out before
// the stream gives up until the next change arrives.
const snapshotRetryLimit = 3

// MessageStream delivers full-collection snapshots to subscribers of a
// conversation. It is deliberately replace-not-diff: every append or delete
// re-reads the complete ordered set and hands it to every subscriber, which
// is the correctness anchor for reconciliation downstream.
type MessageStream struct {
	load      func(ctx context.Context, conversationID string) ([]models.Message, error)
	retryBase time.Duration

	mu     sync.Mutex
	subs   map[string]map[int]func([]models.Message)
	nextID int
}

// NewMessageStream builds a stream over the given snapshot loader.
func NewMessageStream(load func(ctx context.Context, conversationID string) ([]models.Message, error)) *MessageStream {
	return &MessageStream{
		load:      load,
		retryBase: 250 * time.Millisecond,
		subs:      make(map[string]map[int]func([]models.Message)),
	}
}

// Subscribe registers onSnapshot for a conversation and synchronously
// delivers the current full snapshot. The returned cancel function releases
// the subscription; it is safe to call more than once but must be called at
// least once to avoid leaking the registration.
func (s *MessageStream) Subscribe(conversationID string, onSnapshot func([]models.Message)) (func(), error) {
	msgs, err := s.load(context.Background(), conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.subs[conversationID]; !ok {
		s.subs[conversationID] = make(map[int]func([]models.Message))
	}
	id := s.nextID
	s.nextID++
	s.subs[conversationID][id] = onSnapshot
	s.mu.Unlock()

	onSnapshot(msgs)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if subs, ok := s.subs[conversationID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(s.subs, conversationID)
				}
			}
		})
	}
	return cancel, nil
}

// Notify re-reads the conversation and fans the snapshot out to all
// subscribers. Reload failures are retried with capped backoff so a
// transient store error does not leave subscribers permanently stale.
func (s *MessageStream) Notify(conversationID string) {
	s.fanout(conversationID, 0)
}

func (s *MessageStream) fanout(conversationID string, attempt int) {
	s.mu.Lock()
	targets := make([]func([]models.Message), 0, len(s.subs[conversationID]))
	for _, fn := range s.subs[conversationID] {
		targets = append(targets, fn)
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	msgs, err := s.load(context.Background(), conversationID)
	if err != nil {
		if attempt >= snapshotRetryLimit {
			log.Printf("snapshot reload failed for %s, giving up: %v", conversationID, err)
			return
		}
		delay := s.retryBase << attempt
		log.Printf("snapshot reload failed for %s, retrying in %s: %v", conversationID, delay, err)
		time.AfterFunc(delay, func() {
			s.fanout(conversationID, attempt+1)
		})
		return
	}

	for _, fn := range targets {
		fn(msgs)
	}
}

// SubscriberCount reports active subscriptions for a conversation.
func (s *MessageStream) SubscriberCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[conversationID])
}
