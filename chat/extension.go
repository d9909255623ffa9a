// Package chat exposes the high-level chat operations of the SDK:
// conversations, messages, receipts, typing indicators and the user
// channel, backed by the remote record API and the local cache.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/pserra/chatcache/bus"
	"github.com/pserra/chatcache/cache"
	"github.com/pserra/chatcache/record"
	"github.com/pserra/chatcache/remote"
	"go.uber.org/zap"
)

// FetchMessagesCompletion receives fetch results. It fires up to twice:
// first with cached results when any exist, then with the authoritative
// remote results.
type FetchMessagesCompletion func(msgs []record.Message, cached bool, err error)

// Extension is the high-level chat API for one authenticated user.
type Extension struct {
	remote remote.API
	cache  *cache.Controller
	bus    *bus.Bus
	logger *zap.Logger
	userID string

	// MarkDeliveredOnFetch marks messages from other users as delivered
	// whenever a remote fetch returns them.
	MarkDeliveredOnFetch bool
}

// New creates the chat extension for the given user.
func New(api remote.API, c *cache.Controller, b *bus.Bus, userID string, logger *zap.Logger) *Extension {
	return &Extension{
		remote: api,
		cache:  c,
		bus:    b,
		logger: logger,
		userID: userID,
	}
}

// UserID returns the authenticated user this extension acts for.
func (e *Extension) UserID() string {
	return e.userID
}

// FetchMessages loads messages for a conversation, most recent first.
// The cached result is delivered immediately when the cache has any rows
// for the conversation; the remote result follows and is authoritative.
// before is an exclusive pagination cursor; the zero time means latest.
func (e *Extension) FetchMessages(ctx context.Context, conversationID string, limit int, before time.Time, order record.SortKey, completion FetchMessagesCompletion) error {
	cached, err := e.cache.FetchMessages(conversationID, limit, before, order)
	if err != nil {
		return fmt.Errorf("cached fetch: %w", err)
	}
	if len(cached) > 0 {
		completion(cached, true, nil)
	}

	res, err := e.remote.Fetch(ctx, remote.Query{
		RecordType:     record.TypeMessage,
		ConversationID: conversationID,
		Before:         before,
		Limit:          limit,
		Order:          order,
	})
	if err != nil {
		completion(nil, false, err)
		return fmt.Errorf("remote fetch: %w", err)
	}

	msgs := make([]record.Message, 0, len(res.Records))
	for _, rec := range res.Records {
		m, err := record.MessageFromRecord(rec)
		if err != nil {
			completion(nil, false, err)
			return err
		}
		msgs = append(msgs, *m)
	}
	deleted := make([]record.Message, len(res.DeletedIDs))
	for i, id := range res.DeletedIDs {
		deleted[i] = record.Message{ID: id}
	}

	if err := e.cache.DidFetchMessages(msgs, deleted); err != nil {
		completion(nil, false, err)
		return err
	}

	if e.MarkDeliveredOnFetch {
		if ids := e.undeliveredFromOthers(msgs); len(ids) > 0 {
			if err := e.MarkDeliveredMessages(ctx, ids); err != nil {
				e.logger.Warn("failed to mark fetched messages delivered", zap.Error(err))
			}
		}
	}

	completion(msgs, false, nil)
	return nil
}

func (e *Extension) undeliveredFromOthers(msgs []record.Message) []string {
	var ids []string
	for i := range msgs {
		m := &msgs[i]
		if m.CreatorID != e.userID && m.ConversationStatus == record.ConversationStatusDelivering {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
