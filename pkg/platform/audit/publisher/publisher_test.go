package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vericore/pkg/domain"
	audit "vericore/pkg/platform/audit"
	"vericore/pkg/platform/audit/store/memory"
)

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) Append(context.Context, audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("broker unavailable")
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	sessionID := id.NewSessionID()
	err := pub.Emit(context.Background(), audit.Event{
		SessionID: sessionID,
		Action:    string(audit.EventSessionStarted),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventSessionStarted), events[0].Action)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_DerivesCategory(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	sessionID := id.NewSessionID()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{SessionID: sessionID, Action: string(audit.EventSessionFinalized)}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{SessionID: sessionID, Action: string(audit.EventRateLimited)}))

	events, err := pub.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, audit.CategorySecurity, events[1].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	sessionID := id.NewSessionID()
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			SessionID: sessionID,
			Action:    string(audit.EventDocumentAccepted),
		})
		require.NoError(t, err)
	}

	require.NoError(t, pub.Close())

	events, err := store.ListBySession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")

	err = pub.Emit(context.Background(), audit.Event{SessionID: sessionID, Action: string(audit.EventDocumentAccepted)})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{
				SessionID: id.NewSessionID(),
				Action:    string(audit.EventSessionStarted),
			})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	sessionID := id.NewSessionID()
	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{SessionID: sessionID, Action: string(audit.EventCameraDenied)}))
	after := time.Now()

	events, err := pub.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	sessionID := id.NewSessionID()
	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{SessionID: sessionID, Action: string(audit.EventCameraDenied), Timestamp: custom}))

	events, err := pub.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

func TestPublisher_SinkFailureIsNotFatal(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &failingSink{}
	pub := NewPublisher(store, WithSink(sink))
	defer pub.Close()

	sessionID := id.NewSessionID()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{SessionID: sessionID, Action: string(audit.EventSessionFinalized)}))

	events, err := pub.List(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, sink.calls)
}

func TestInMemoryStore_ListRecent(t *testing.T) {
	store := memory.NewInMemoryStore()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, store.Append(context.Background(), audit.Event{
			SessionID: id.NewSessionID(),
			Action:    string(audit.EventSessionStarted),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := store.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, base.Add(4*time.Minute), recent[0].Timestamp)
	assert.Equal(t, base.Add(3*time.Minute), recent[1].Timestamp)
}
