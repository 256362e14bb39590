package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/infrastructure/events"
)

// EventStore persists the audit trail in audit_events. Payloads are stored
// as JSON and come back as json.RawMessage.
type EventStore struct {
	q querier
}

var _ events.EventStore = (*EventStore)(nil)

func (s *EventStore) AppendEvent(ctx context.Context, streamID string, event events.Event) error {
	payload, err := json.Marshal(event.Data())
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Type(), err)
	}

	_, err = s.q.Exec(ctx, `
INSERT INTO audit_events (id, stream_id, version, event_type, payload, occurred_at)
SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5
FROM audit_events WHERE stream_id = $2`,
		event.ID(), streamID, event.Type(), payload, event.Timestamp())
	return entities.WrapStore("append event", err)
}

func (s *EventStore) ReadEvents(ctx context.Context, streamID string, fromVersion int) ([]events.Event, error) {
	rows, err := s.q.Query(ctx, `
SELECT id, event_type, payload, occurred_at, version FROM audit_events
WHERE stream_id = $1 AND version >= $2 ORDER BY version`, streamID, fromVersion)
	if err != nil {
		return nil, entities.WrapStore("read events", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		var (
			e       events.BaseEvent
			payload []byte
			at      time.Time
		)
		if err := rows.Scan(&e.EventID, &e.EventType, &payload, &at, &e.EventVersion); err != nil {
			return nil, entities.WrapStore("scan event", err)
		}
		e.Stream = streamID
		e.EventData = json.RawMessage(payload)
		e.EventTime = at
		out = append(out, e)
	}
	return out, entities.WrapStore("read events", rows.Err())
}
