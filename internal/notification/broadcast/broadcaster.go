// Package broadcast fans realtime notifications out to connected sessions.
package broadcast

import (
	"encoding/json"
	"sync"

	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// EventType names a realtime notification.
type EventType string

const (
	EventNewLead     EventType = "NEW_LEAD"
	EventChatMessage EventType = "CHAT_MESSAGE"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 32

// NotificationEvent is a transient realtime message. It is delivered at most
// once to sessions connected at broadcast time and never replayed.
type NotificationEvent struct {
	Type          EventType       `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// NewEvent encodes payload once so every subscriber shares the same bytes.
func NewEvent(eventType EventType, payload any) (NotificationEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return NotificationEvent{}, err
	}
	return NotificationEvent{Type: eventType, Payload: raw, CorrelationID: uuid.NewString()}, nil
}

// Subscription is one live consumer. C is closed by Close or when the
// broadcaster shuts down.
type Subscription struct {
	C <-chan NotificationEvent

	ch     chan NotificationEvent
	id     uint64
	b      *Broadcaster
	closed sync.Once
}

// Close removes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.closed.Do(func() { s.b.remove(s.id) })
}

// Broadcaster fans events out to every current subscriber. A subscriber whose
// buffer is full misses the event; Broadcast never blocks.
type Broadcaster struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	bufferSize int
	closed     bool
	log        *logger.Logger
}

// NewBroadcaster creates a broadcaster. bufferSize <= 0 uses DefaultBufferSize.
func NewBroadcaster(bufferSize int, log *logger.Logger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broadcaster{
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
		log:        log,
	}
}

// Listen registers a channel subscriber.
func (b *Broadcaster) Listen() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan NotificationEvent, b.bufferSize)
	b.nextID++
	sub := &Subscription{C: ch, ch: ch, id: b.nextID, b: b}
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Subscribe runs handler for each event on its own goroutine and returns
// the unsubscribe function.
func (b *Broadcaster) Subscribe(handler func(NotificationEvent)) func() {
	sub := b.Listen()
	go func() {
		for event := range sub.C {
			handler(event)
		}
	}()
	return sub.Close
}

// Broadcast delivers event to every subscriber with room in its buffer and
// returns how many received it.
func (b *Broadcaster) Broadcast(event NotificationEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
			delivered++
		default:
			httpkit.RecordRealtimeDrop()
			if b.log != nil {
				b.log.Warn("realtime: subscriber buffer full, event dropped", "type", event.Type, "subscriber", sub.id)
			}
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later Listen calls get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}
