package chat

import (
	"context"
	"fmt"

	"github.com/pserra/chatcache/record"
)

// UnreadCount reports unread totals for the current user.
type UnreadCount struct {
	Messages      int
	Conversations int
}

// MarkReadMessages marks messages as read by the current user.
func (e *Extension) MarkReadMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := e.remote.Call(ctx, "chat:mark_as_read", map[string]any{
		"message_ids": messageIDs,
	})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkDeliveredMessages marks messages as delivered to the current user.
func (e *Extension) MarkDeliveredMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := e.remote.Call(ctx, "chat:mark_as_delivered", map[string]any{
		"message_ids": messageIDs,
	})
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// FetchReceipts returns the per-user delivery receipts of a message.
func (e *Extension) FetchReceipts(ctx context.Context, messageID string) ([]record.Receipt, error) {
	resp, err := e.remote.Call(ctx, "chat:get_receipt", map[string]any{
		"message_id": messageID,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch receipts: %w", err)
	}
	raw, _ := resp["receipts"].([]any)
	receipts := make([]record.Receipt, 0, len(raw))
	for _, entry := range raw {
		dict, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		receipts = append(receipts, *record.ReceiptFromMap(dict))
	}
	return receipts, nil
}

// MarkLastReadMessage updates the conversation's last-read marker for the
// current user.
func (e *Extension) MarkLastReadMessage(ctx context.Context, conv *record.Conversation, msg *record.Message) error {
	_, err := e.remote.Call(ctx, "chat:mark_last_read_message", map[string]any{
		"conversation_id": conv.ID,
		"message_id":      msg.ID,
	})
	if err != nil {
		return fmt.Errorf("mark last read: %w", err)
	}
	conv.LastReadMessageID = msg.ID
	return nil
}

// FetchUnreadCount returns the unread message count of one conversation.
func (e *Extension) FetchUnreadCount(ctx context.Context, conversationID string) (*UnreadCount, error) {
	resp, err := e.remote.Call(ctx, "chat:unread_count", map[string]any{
		"conversation_id": conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch unread count: %w", err)
	}
	return unreadFromResponse(resp), nil
}

// FetchTotalUnreadCount returns unread totals across all conversations.
func (e *Extension) FetchTotalUnreadCount(ctx context.Context) (*UnreadCount, error) {
	resp, err := e.remote.Call(ctx, "chat:total_unread", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch total unread count: %w", err)
	}
	return unreadFromResponse(resp), nil
}

func unreadFromResponse(resp map[string]any) *UnreadCount {
	return &UnreadCount{
		Messages:      intFromAny(resp["message"]),
		Conversations: intFromAny(resp["conversation"]),
	}
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
