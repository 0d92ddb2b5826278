package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/internal/models"
)

type stubLoader struct {
	mu    sync.Mutex
	msgs  map[string][]models.Message
	errs  []error
	calls int
}

func (l *stubLoader) load(_ context.Context, conversationID string) ([]models.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return l.msgs[conversationID], nil
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	loader := &stubLoader{msgs: map[string][]models.Message{
		"c1": {{ID: "m1"}, {ID: "m2"}},
	}}
	stream := NewMessageStream(loader.load)

	var got []models.Message
	cancel, err := stream.Subscribe("c1", func(msgs []models.Message) { got = msgs })
	require.NoError(t, err)
	defer cancel()

	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, 1, stream.SubscriberCount("c1"))
}

func TestSubscribeInitialLoadFailure(t *testing.T) {
	loader := &stubLoader{errs: []error{assert.AnError}}
	stream := NewMessageStream(loader.load)

	cancel, err := stream.Subscribe("c1", func([]models.Message) {})
	require.Error(t, err)
	assert.Nil(t, cancel)
	assert.Equal(t, 0, stream.SubscriberCount("c1"))
}

func TestNotifyFansOutToAllSubscribers(t *testing.T) {
	loader := &stubLoader{msgs: map[string][]models.Message{}}
	stream := NewMessageStream(loader.load)

	var mu sync.Mutex
	counts := map[string]int{}
	sub := func(name string) func([]models.Message) {
		return func([]models.Message) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		}
	}

	cancelA, err := stream.Subscribe("c1", sub("a"))
	require.NoError(t, err)
	defer cancelA()
	cancelB, err := stream.Subscribe("c1", sub("b"))
	require.NoError(t, err)
	defer cancelB()

	loader.mu.Lock()
	loader.msgs["c1"] = []models.Message{{ID: "m1"}}
	loader.mu.Unlock()
	stream.Notify("c1")

	mu.Lock()
	defer mu.Unlock()
	// One initial delivery each plus one fan-out each.
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 2, counts["b"])
}

func TestCancelStopsDelivery(t *testing.T) {
	loader := &stubLoader{msgs: map[string][]models.Message{}}
	stream := NewMessageStream(loader.load)

	delivered := 0
	cancel, err := stream.Subscribe("c1", func([]models.Message) { delivered++ })
	require.NoError(t, err)

	cancel()
	cancel() // safe to call twice
	assert.Equal(t, 0, stream.SubscriberCount("c1"))

	stream.Notify("c1")
	assert.Equal(t, 1, delivered)
}

func TestNotifyRetriesAfterReloadFailure(t *testing.T) {
	loader := &stubLoader{
		msgs: map[string][]models.Message{"c1": {{ID: "m1"}}},
		errs: []error{nil, assert.AnError}, // initial load ok, first reload fails
	}
	stream := NewMessageStream(loader.load)
	stream.retryBase = time.Millisecond

	var mu sync.Mutex
	deliveries := 0
	cancel, err := stream.Subscribe("c1", func([]models.Message) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	stream.Notify("c1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deliveries == 2
	}, time.Second, 5*time.Millisecond)
}

func TestNotifyWithoutSubscribersSkipsReload(t *testing.T) {
	loader := &stubLoader{msgs: map[string][]models.Message{}}
	stream := NewMessageStream(loader.load)

	stream.Notify("c1")
	assert.Equal(t, 0, loader.calls)
}
