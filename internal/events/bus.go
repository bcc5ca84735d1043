package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lvglgen/pkg/logger"
)

// Handler receives published events. Handlers run synchronously on the
// emitting goroutine and must not block.
type Handler func(event *Event)

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	eventType EventType
	handler   Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[SubscriptionID]subscription
	next SubscriptionID
	log  zerolog.Logger
}

// NewBus creates an empty event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[SubscriptionID]subscription),
		log:  logger.Component(log, "event_bus"),
	}
}

// Subscribe registers handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.subs[b.next] = subscription{eventType: eventType, handler: handler}
	return b.next
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
}

// Emit publishes an event to every subscriber of its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.eventType == eventType {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, event)
	}
}

func (b *Bus) dispatch(h Handler, event *Event) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error().
				Interface("panic", p).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	h(event)
}
