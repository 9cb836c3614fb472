package events

// Event represents a structured state change emitted by the vault.
type Event interface {
	EventType() string
	Attributes() map[string]string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MemoryEmitter retains emitted events in order. Intended for tests and for
// the RPC event feed.
type MemoryEmitter struct {
	events []Event
}

// Emit implements the Emitter interface.
func (m *MemoryEmitter) Emit(e Event) {
	if e == nil {
		return
	}
	m.events = append(m.events, e)
}

// Events returns the emitted events in emission order.
func (m *MemoryEmitter) Events() []Event {
	return append([]Event(nil), m.events...)
}
