package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/pserra/chatcache/bus"
	"github.com/pserra/chatcache/record"
)

// SendTypingIndicator reports the current user's typing state to the
// other participants of a conversation.
func (e *Extension) SendTypingIndicator(ctx context.Context, conversationID string, event record.TypingEvent, at time.Time) error {
	_, err := e.remote.Call(ctx, "chat:typing", map[string]any{
		"conversation_id": conversationID,
		"event":           string(event),
		"at":              at.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("send typing indicator: %w", err)
	}
	return nil
}

// SubscribeTypingIndicator delivers typing indicators for one
// conversation. The returned cancel function must be called to release
// the subscription.
func (e *Extension) SubscribeTypingIndicator(conversationID string) (<-chan *record.TypingIndicator, func()) {
	events, unsub := e.bus.Subscribe("typing.", 64)
	out := make(chan *record.TypingIndicator, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case evt := <-events:
				ind, ok := evt.Payload.(*record.TypingIndicator)
				if !ok || ind.ConversationID != conversationID {
					continue
				}
				select {
				case out <- ind:
				default:
					// Drop when the consumer lags.
				}
			case <-done:
				return
			}
		}
	}()

	return out, func() {
		unsub()
		close(done)
	}
}

// publishTyping fans a typing payload out to bus subscribers.
func (e *Extension) publishTyping(ind *record.TypingIndicator) {
	e.bus.Publish(bus.Event{
		Kind:      bus.KindTypingIndicator,
		Timestamp: time.Now(),
		Payload:   ind,
	})
}
