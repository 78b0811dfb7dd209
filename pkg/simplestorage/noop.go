package simplestorage

import "context"

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ObjectStored does nothing and returns nil
func (n *NoopEventSink) ObjectStored(ctx context.Context, key string, attrs Attributes) error {
	return nil
}

// ObjectRemoved does nothing and returns nil
func (n *NoopEventSink) ObjectRemoved(ctx context.Context, key string) error {
	return nil
}
