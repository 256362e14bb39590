package events

import (
	"context"
	"sync"
)

type InMemoryEventStore struct {
	streams map[string][]Event
	mutex   sync.RWMutex
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		streams: make(map[string][]Event),
	}
}

func (s *InMemoryEventStore) AppendEvent(ctx context.Context, streamID string, event Event) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	eventWithVersion := BaseEvent{
		EventID:      event.ID(),
		EventType:    event.Type(),
		Stream:       streamID,
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: len(s.streams[streamID]) + 1,
	}

	s.streams[streamID] = append(s.streams[streamID], eventWithVersion)
	return nil
}

func (s *InMemoryEventStore) ReadEvents(ctx context.Context, streamID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events, exists := s.streams[streamID]
	if !exists {
		return []Event{}, nil
	}

	if fromVersion < 1 {
		fromVersion = 1
	}

	if fromVersion > len(events) {
		return []Event{}, nil
	}

	out := make([]Event, len(events)-fromVersion+1)
	copy(out, events[fromVersion-1:])
	return out, nil
}

// BufferedEventStore collects events for a transaction and hands them to the
// target store on Flush.
type BufferedEventStore struct {
	target  EventStore
	pending []Event
	mutex   sync.Mutex
}

func NewBufferedEventStore(target EventStore) *BufferedEventStore {
	return &BufferedEventStore{target: target}
}

func (b *BufferedEventStore) AppendEvent(ctx context.Context, streamID string, event Event) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.pending = append(b.pending, BaseEvent{
		EventID:   event.ID(),
		EventType: event.Type(),
		Stream:    streamID,
		EventData: event.Data(),
		EventTime: event.Timestamp(),
	})
	return nil
}

// ReadEvents returns committed events followed by this buffer's pending ones
func (b *BufferedEventStore) ReadEvents(ctx context.Context, streamID string, fromVersion int) ([]Event, error) {
	committed, err := b.target.ReadEvents(ctx, streamID, 1)
	if err != nil {
		return nil, err
	}

	b.mutex.Lock()
	all := committed
	for _, e := range b.pending {
		if e.StreamID() == streamID {
			be := e.(BaseEvent)
			be.EventVersion = len(all) + 1
			all = append(all, be)
		}
	}
	b.mutex.Unlock()

	if fromVersion < 1 {
		fromVersion = 1
	}
	if fromVersion > len(all) {
		return []Event{}, nil
	}
	return all[fromVersion-1:], nil
}

func (b *BufferedEventStore) Flush(ctx context.Context) error {
	b.mutex.Lock()
	pending := b.pending
	b.pending = nil
	b.mutex.Unlock()

	for _, e := range pending {
		if err := b.target.AppendEvent(ctx, e.StreamID(), e); err != nil {
			return err
		}
	}
	return nil
}
