package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pserra/chatcache/bus"
	"github.com/pserra/chatcache/record"
	"github.com/pserra/chatcache/remote"
)

// FetchOrCreateUserChannel returns the current user's push channel,
// creating one if the user has none yet.
func (e *Extension) FetchOrCreateUserChannel(ctx context.Context) (*record.UserChannel, error) {
	res, err := e.remote.Fetch(ctx, remote.Query{RecordType: record.TypeUserChannel, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("fetch user channel: %w", err)
	}
	if len(res.Records) > 0 {
		return record.UserChannelFromRecord(res.Records[0])
	}

	channel := &record.UserChannel{ID: uuid.New().String(), Name: uuid.New().String()}
	saved, err := e.remote.Save(ctx, channel.ToRecord())
	if err != nil {
		return nil, fmt.Errorf("create user channel: %w", err)
	}
	return record.UserChannelFromRecord(saved)
}

// SubscribeUserChannel subscribes the session to the user's push channel.
// Payloads delivered by the transport must be handed to
// HandleUserChannelMessage.
func (e *Extension) SubscribeUserChannel(ctx context.Context) (*record.UserChannel, error) {
	channel, err := e.FetchOrCreateUserChannel(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := e.remote.Call(ctx, "push:subscribe", map[string]any{"channel": channel.Name}); err != nil {
		return nil, fmt.Errorf("subscribe user channel: %w", err)
	}
	return channel, nil
}

// UnsubscribeUserChannel stops push delivery for the session.
func (e *Extension) UnsubscribeUserChannel(ctx context.Context, channel *record.UserChannel) error {
	if _, err := e.remote.Call(ctx, "push:unsubscribe", map[string]any{"channel": channel.Name}); err != nil {
		return fmt.Errorf("unsubscribe user channel: %w", err)
	}
	return nil
}

// HandleUserChannelMessage is the sink for push payloads delivered on the
// user channel. Record changes are published as record.* bus events,
// which the cache controller's ingest loop applies in arrival order;
// typing payloads fan out to typing subscribers.
func (e *Extension) HandleUserChannelMessage(payload map[string]any) {
	if raw, ok := payload["record"].(map[string]any); ok {
		e.handleRecordPayload(payload, raw)
		return
	}
	if raw, ok := payload["typing"].(map[string]any); ok {
		conversationID, _ := payload["conversation_id"].(string)
		e.publishTyping(record.TypingIndicatorFromMap(conversationID, raw))
	}
}

func (e *Extension) handleRecordPayload(payload, raw map[string]any) {
	event, _ := payload["event"].(string)
	recordType, _ := payload["record_type"].(string)

	rec := &record.Record{
		ID:     stringFrom(raw, "_id"),
		Type:   recordType,
		Fields: raw,
	}
	rec.CreatorID = stringFrom(raw, "_created_by")
	rec.CreatedAt = timeFrom(raw, "_created_at")
	rec.UpdatedAt = timeFrom(raw, "_updated_at")

	var kind string
	switch record.ChangeEvent(event) {
	case record.ChangeCreate:
		kind = bus.KindRecordCreated
	case record.ChangeUpdate:
		kind = bus.KindRecordUpdated
	case record.ChangeDelete:
		kind = bus.KindRecordDeleted
	default:
		return
	}

	e.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload: &record.Change{
			Event:      record.ChangeEvent(event),
			RecordType: recordType,
			Record:     rec,
		},
	})
}

func stringFrom(dict map[string]any, key string) string {
	s, _ := dict[key].(string)
	return s
}

func timeFrom(dict map[string]any, key string) time.Time {
	switch v := dict[key].(type) {
	case int64:
		return time.UnixMilli(v)
	case float64:
		return time.UnixMilli(int64(v))
	}
	return time.Time{}
}
