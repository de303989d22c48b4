package events

import (
	"time"

	"github.com/kelindar/event"

	"github.com/smazurov/pingnode/internal/dm"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Delivery is asynchronous, so Publish is safe to call with locks held.
// Usage: bus.Publish(ProbeFinishedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ResourceChangedEvent:
		event.Publish(b.dispatcher, e)
	case ProbeFinishedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e ResourceChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ResourceChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProbeFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

// NotifyChanged publishes a ResourceChangedEvent for p.
func (b *Bus) NotifyChanged(p dm.Path) {
	b.Publish(ResourceChangedEvent{
		Path:       p.String(),
		ObjectID:   uint16(p.OID),
		InstanceID: uint16(p.IID),
		ResourceID: uint16(p.RID),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

var _ dm.Notifier = (*Bus)(nil)
