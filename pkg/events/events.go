// Package events implements the live progress bus: Operation updates are
// published here and fanned out to per-user and admin subscribers, with a
// bounded replay buffer so a client that reconnects with its last seen
// sequence number picks up only what it missed.
package events

import (
	"sync"
	"time"

	"github.com/ldmsys/ldm/pkg/types"
)

// EventType names the kind of update carried by an Event.
type EventType string

const (
	EventOperationCreated   EventType = "operation.created"
	EventOperationUpdated   EventType = "operation.updated"
	EventOperationCompleted EventType = "operation.completed"
	EventOperationFailed    EventType = "operation.failed"
	EventOperationCancelled EventType = "operation.cancelled"
)

// Event is one published update. Seq is assigned by the Broker and is
// monotonically increasing across the whole broker, not per-operation;
// clients track the highest Seq they've seen and reconnect with it.
type Event struct {
	Seq       uint64
	Type      EventType
	Timestamp time.Time
	Operation *types.Operation
}

// replayBufferSize bounds how far back a reconnecting client can recover;
// beyond this it must re-list via ops.list instead of replaying the bus.
const replayBufferSize = 2048

// Filter selects which events a subscriber receives. An admin subscriber
// (IsAdmin true) receives every event regardless of UserID/Topic. Topic
// is an op_id: the topic stream exists so a reconnecting client can
// follow one specific operation.
type Filter struct {
	UserID  string
	Topic   string // non-empty: only events for this operation id
	IsAdmin bool
}

func (f Filter) matches(e *Event) bool {
	if f.IsAdmin {
		return true
	}
	if e.Operation == nil {
		return false
	}
	if f.UserID != "" && e.Operation.UserID != f.UserID {
		return false
	}
	if f.Topic != "" && e.Operation.OpID != f.Topic {
		return false
	}
	return true
}

// Subscriber is a channel that receives events matching its Filter.
type Subscriber struct {
	ch     chan *Event
	filter Filter
}

// Chan returns the channel to range over for delivered events.
func (s *Subscriber) Chan() <-chan *Event { return s.ch }

// Broker distributes Operation events to subscribers and retains a
// bounded ring buffer for reconnect replay.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]bool
	buffer      []*Event // ring buffer, oldest first
	nextSeq     uint64
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscriber]bool),
		eventCh:     make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscriber matching filter and returns it
// along with the broker's current sequence number, so the caller can
// later reconnect with ReplaySince(lastSeq, filter).
func (b *Broker) Subscribe(filter Filter) (*Subscriber, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{ch: make(chan *Event, 64), filter: filter}
	b.subscribers[sub] = true
	return sub, b.nextSeq
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub.ch)
	}
}

// Publish publishes an Operation update to all matching subscribers and
// appends it to the replay buffer.
func (b *Broker) Publish(evtType EventType, op *types.Operation) {
	evt := &Event{Type: evtType, Timestamp: time.Now(), Operation: op}

	select {
	case b.eventCh <- evt:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case evt := <-b.eventCh:
			b.dispatch(evt)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) dispatch(evt *Event) {
	b.mu.Lock()
	b.nextSeq++
	evt.Seq = b.nextSeq
	if evt.Operation != nil {
		evt.Operation.Seq = evt.Seq
	}

	b.buffer = append(b.buffer, evt)
	if len(b.buffer) > replayBufferSize {
		b.buffer = b.buffer[len(b.buffer)-replayBufferSize:]
	}

	subs := make([]*Subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.filter.matches(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// subscriber buffer full: drop rather than block the bus.
			// A client that falls this far behind reconnects with its
			// last seq and replays from the buffer instead.
		}
	}
}

// ReplaySince returns buffered events after lastSeq matching filter, in
// order. ok is false if lastSeq has already fallen out of the buffer's
// retention window, meaning the caller must re-list via ops.list.
func (b *Broker) ReplaySince(lastSeq uint64, filter Filter) (events []*Event, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.buffer) > 0 && lastSeq < b.buffer[0].Seq-1 {
		return nil, false
	}

	for _, evt := range b.buffer {
		if evt.Seq <= lastSeq {
			continue
		}
		if filter.matches(evt) {
			events = append(events, evt)
		}
	}
	return events, true
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
