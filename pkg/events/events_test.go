package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ldmsys/ldm/pkg/types"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker()
	b.Start()
	t.Cleanup(b.Stop)
	return b
}

func opFor(user, opID string, progress int) *types.Operation {
	return &types.Operation{
		OpID:     opID,
		UserID:   user,
		Tool:     "tm",
		Function: "pretranslate",
		State:    types.OperationRunning,
		Progress: progress,
	}
}

func collect(t *testing.T, sub *Subscriber, n int) []*Event {
	t.Helper()
	events := make([]*Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case evt := <-sub.Chan():
			events = append(events, evt)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d of %d", len(events), n)
		}
	}
	return events
}

func TestOwnerReceivesOwnUpdatesInOrder(t *testing.T) {
	b := newTestBroker(t)
	sub, _ := b.Subscribe(Filter{UserID: "alice"})
	defer b.Unsubscribe(sub)

	for i := 1; i <= 5; i++ {
		b.Publish(EventOperationUpdated, opFor("alice", "op-1", i*20))
	}

	got := collect(t, sub, 5)
	for i, evt := range got {
		require.Equal(t, (i+1)*20, evt.Operation.Progress)
		if i > 0 {
			require.Greater(t, evt.Seq, got[i-1].Seq)
		}
	}
}

func TestOwnerDoesNotSeeOtherUsersOperations(t *testing.T) {
	b := newTestBroker(t)
	sub, _ := b.Subscribe(Filter{UserID: "alice"})
	defer b.Unsubscribe(sub)

	b.Publish(EventOperationUpdated, opFor("bob", "op-bob", 10))
	b.Publish(EventOperationUpdated, opFor("alice", "op-alice", 50))

	got := collect(t, sub, 1)
	require.Equal(t, "op-alice", got[0].Operation.OpID)

	select {
	case evt := <-sub.Chan():
		t.Fatalf("unexpected extra event for op %s", evt.Operation.OpID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAdminSeesAllOperations(t *testing.T) {
	b := newTestBroker(t)
	sub, _ := b.Subscribe(Filter{UserID: "root", IsAdmin: true})
	defer b.Unsubscribe(sub)

	b.Publish(EventOperationUpdated, opFor("bob", "op-bob", 10))
	b.Publish(EventOperationUpdated, opFor("alice", "op-alice", 50))

	got := collect(t, sub, 2)
	require.Equal(t, "op-bob", got[0].Operation.OpID)
	require.Equal(t, "op-alice", got[1].Operation.OpID)
}

// A client that disconnects mid-operation reconnects with the last
// sequence number it saw and must receive exactly the updates with
// seq > lastSeq, in order, with no duplicates.
func TestReplaySinceReturnsOnlyMissedUpdates(t *testing.T) {
	b := newTestBroker(t)

	// drain via a throwaway subscriber so publishes are fully dispatched
	// before we sample sequence numbers.
	sub, _ := b.Subscribe(Filter{UserID: "alice"})
	defer b.Unsubscribe(sub)

	for i := 1; i <= 10; i++ {
		b.Publish(EventOperationUpdated, opFor("alice", "op-1", i*10))
	}
	live := collect(t, sub, 10)
	lastSeen := live[6].Seq // "disconnect" after the 7th update

	missed, ok := b.ReplaySince(lastSeen, Filter{UserID: "alice"})
	require.True(t, ok)
	require.Len(t, missed, 3)
	prev := lastSeen
	for _, evt := range missed {
		require.Greater(t, evt.Seq, prev)
		prev = evt.Seq
	}
	require.Equal(t, 100, missed[len(missed)-1].Operation.Progress)
}

func TestTopicFilterFollowsOneOperation(t *testing.T) {
	b := newTestBroker(t)
	sub, _ := b.Subscribe(Filter{UserID: "alice", Topic: "op-2"})
	defer b.Unsubscribe(sub)

	b.Publish(EventOperationUpdated, opFor("alice", "op-1", 10))
	b.Publish(EventOperationUpdated, opFor("alice", "op-2", 20))
	b.Publish(EventOperationUpdated, opFor("alice", "op-1", 30))

	got := collect(t, sub, 1)
	require.Equal(t, "op-2", got[0].Operation.OpID)

	select {
	case evt := <-sub.Chan():
		t.Fatalf("unexpected event for op %s", evt.Operation.OpID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReplaySinceFiltersOtherUsers(t *testing.T) {
	b := newTestBroker(t)
	sub, _ := b.Subscribe(Filter{IsAdmin: true})
	defer b.Unsubscribe(sub)

	b.Publish(EventOperationUpdated, opFor("alice", "op-alice", 40))
	b.Publish(EventOperationUpdated, opFor("bob", "op-bob", 60))
	collect(t, sub, 2)

	missed, ok := b.ReplaySince(0, Filter{UserID: "bob"})
	require.True(t, ok)
	require.Len(t, missed, 1)
	require.Equal(t, "op-bob", missed[0].Operation.OpID)
}

func TestReplaySinceReportsWindowExhausted(t *testing.T) {
	b := newTestBroker(t)

	for i := 0; i < replayBufferSize+10; i++ {
		b.Publish(EventOperationUpdated, opFor("alice", "op-1", i%101))
	}

	// lastSeq=3 falls out of the ring once the buffer rolls over; the
	// caller must re-list via ops.list instead. Dispatch is async, so
	// poll until the rollover is visible.
	require.Eventually(t, func() bool {
		_, ok := b.ReplaySince(3, Filter{UserID: "alice"})
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newTestBroker(t)
	sub, _ := b.Subscribe(Filter{UserID: "alice"})
	b.Unsubscribe(sub)

	_, open := <-sub.Chan()
	require.False(t, open)
	require.Zero(t, b.SubscriberCount())
}
