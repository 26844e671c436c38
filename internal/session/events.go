package session

// Event represents a manager lifecycle event.
// Minimal and stable: name + conversation/model id plus optional fields.
type Event struct {
	Name           string
	ModelID        string
	ConversationID string
	Fields         map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
