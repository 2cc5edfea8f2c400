package testutils

import (
	"context"

	"github.com/meridianlabs/mnemo/pkg/eventstream"
)

// MockPublisher is a test eventstream publisher that records published
// events.
type MockPublisher struct {
	// Events accumulates all published events.
	Events []*eventstream.FactEvent

	// FailPublish causes PublishFact to return this error.
	FailPublish error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishFact(_ context.Context, event *eventstream.FactEvent) error {
	if event == nil {
		return eventstream.ErrNilFactEvent
	}
	if m.FailPublish != nil {
		return m.FailPublish
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// EventTypes returns the types of published events in order.
func (m *MockPublisher) EventTypes() []string {
	types := make([]string, len(m.Events))
	for i, event := range m.Events {
		types[i] = event.EventType
	}
	return types
}

// Ensure MockPublisher implements eventstream.Publisher
var _ eventstream.Publisher = (*MockPublisher)(nil)
