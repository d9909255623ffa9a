// Package cache implements the cache controller: the single mediator
// between the local store and the rest of the SDK. It reconciles
// server-fetched data with cached data, ingests push-delivered record
// changes, and tracks the lifecycle of mutating message operations.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pserra/chatcache/bus"
	"github.com/pserra/chatcache/record"
	"github.com/pserra/chatcache/store"
	"go.uber.org/zap"
)

// Controller mediates all reads and writes of the local store. It is the
// only component that talks to the store; callers are expected to invoke
// its methods from a single serialized context per session.
type Controller struct {
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewController creates a cache controller over the given store.
func NewController(st *store.Store, b *bus.Bus, logger *zap.Logger) *Controller {
	return &Controller{
		store:  st,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to record change events on the bus and applies them to
// the store in arrival order on a single goroutine.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	ch, unsub := c.bus.Subscribe("record.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				c.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the ingest loop.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) handleEvent(evt bus.Event) {
	chg, ok := evt.Payload.(*record.Change)
	if !ok {
		return
	}
	if err := c.HandleRecordChange(chg); err != nil {
		c.logger.Error("failed to apply record change",
			zap.Error(err),
			zap.String("event", string(chg.Event)),
			zap.String("record_type", chg.RecordType))
	}
}

// FetchMessages returns cached messages for a conversation, most recent
// first by the given sort key, excluding soft-deleted rows. before is an
// exclusive pagination cursor; the zero time means no bound.
func (c *Controller) FetchMessages(conversationID string, limit int, before time.Time, order record.SortKey) ([]record.Message, error) {
	msgs, err := c.store.GetMessages(store.MessageQuery{
		ConversationID: conversationID,
		Before:         before,
	}, limit, order)
	if err != nil {
		return nil, fmt.Errorf("get cached messages: %w", err)
	}
	return msgs, nil
}

// FetchMessage returns one cached message, or nil if it is not cached.
func (c *Controller) FetchMessage(id string) (*record.Message, error) {
	return c.store.GetMessage(id)
}

// SetMessages upserts messages into the cache as-is. Used for optimistic
// writes before a remote save resolves.
func (c *Controller) SetMessages(msgs []record.Message) error {
	if err := c.store.SetMessages(msgs); err != nil {
		return fmt.Errorf("upsert messages: %w", err)
	}
	c.publish(bus.KindMessageUpserted, messageIDs(msgs))
	return nil
}

// DidFetchMessages reconciles a completed remote fetch with the cache:
// fetched messages overwrite cached rows unconditionally (server wins)
// and confirmed deletions are physically removed.
func (c *Controller) DidFetchMessages(msgs []record.Message, deleted []record.Message) error {
	for i := range msgs {
		msgs[i].SyncStatus = record.SyncStatusSynced
	}
	if err := c.store.SetMessages(msgs); err != nil {
		return fmt.Errorf("upsert fetched messages: %w", err)
	}
	if err := c.store.DeleteMessages(messageIDs(deleted)); err != nil {
		return fmt.Errorf("remove deleted messages: %w", err)
	}
	if len(msgs) > 0 {
		c.publish(bus.KindMessageUpserted, messageIDs(msgs))
	}
	if len(deleted) > 0 {
		c.publish(bus.KindMessageDeleted, messageIDs(deleted))
	}
	return nil
}

// DidSaveMessage updates the cache after a direct remote save succeeded.
func (c *Controller) DidSaveMessage(msg *record.Message) error {
	msg.SyncStatus = record.SyncStatusSynced
	if err := c.store.SetMessages([]record.Message{*msg}); err != nil {
		return fmt.Errorf("upsert saved message: %w", err)
	}
	c.publish(bus.KindMessageUpserted, []string{msg.ID})
	return nil
}

// DidDeleteMessage caches a soft-deletion marker after a direct remote
// delete succeeded. The row is kept so an offline-aware merge can tell a
// deletion apart from a never-seen message; a later fetch confirming the
// deletion removes it physically.
func (c *Controller) DidDeleteMessage(msg *record.Message) error {
	marker := msg.Clone()
	marker.Deleted = true
	marker.Body = ""
	if err := c.store.SetMessages([]record.Message{*marker}); err != nil {
		return fmt.Errorf("cache deletion marker: %w", err)
	}
	c.publish(bus.KindMessageDeleted, []string{msg.ID})
	return nil
}

// HandleRecordChange applies a push-delivered record change to the cache.
//
// Any event carrying a record payload is treated as newer than whatever
// is cached; no version comparison is performed. A change racing an
// in-flight fetch therefore resolves by arrival order. Known limitation,
// kept deliberately.
func (c *Controller) HandleRecordChange(chg *record.Change) error {
	if chg.RecordType != record.TypeMessage || chg.Record == nil {
		return nil
	}
	msg, err := record.MessageFromRecord(chg.Record)
	if err != nil {
		return fmt.Errorf("decode change record: %w", err)
	}

	switch chg.Event {
	case record.ChangeCreate, record.ChangeUpdate:
		if err := c.store.SetMessages([]record.Message{*msg}); err != nil {
			return fmt.Errorf("apply record change: %w", err)
		}
		c.publish(bus.KindMessageUpserted, []string{msg.ID})
	case record.ChangeDelete:
		return c.DidDeleteMessage(msg)
	default:
		return fmt.Errorf("unknown change event %q", chg.Event)
	}
	return nil
}

// DidStartMessage creates and persists a pending operation for a mutating
// action on a message. Any previous still-pending operation of the same
// type on the same message is replaced, keeping at most one active
// operation per message and type.
func (c *Controller) DidStartMessage(msg *record.Message, conversationID string, typ record.OperationType) (*record.MessageOperation, error) {
	stale, err := c.store.GetMessageOperations(store.OperationQuery{
		MessageID: msg.ID,
		Type:      typ,
		Status:    record.OperationPending,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("find stale operations: %w", err)
	}
	if err := c.store.DeleteMessageOperations(operationIDs(stale)); err != nil {
		return nil, fmt.Errorf("remove stale operations: %w", err)
	}

	op := record.NewMessageOperation(msg, conversationID, typ)
	if err := c.store.SetMessageOperations([]record.MessageOperation{*op}); err != nil {
		return nil, fmt.Errorf("persist operation: %w", err)
	}
	c.publish(bus.KindOperationStarted, op.ID)
	return op, nil
}

// DidCompleteMessageOperation marks an operation successful and removes
// it. Success is transient: once confirmed there is nothing to retry.
func (c *Controller) DidCompleteMessageOperation(op *record.MessageOperation) error {
	if err := transition(op, record.OperationSuccess); err != nil {
		return err
	}
	if err := c.store.DeleteMessageOperations([]string{op.ID}); err != nil {
		return fmt.Errorf("remove completed operation: %w", err)
	}
	c.publish(bus.KindOperationCompleted, op.ID)
	return nil
}

// DidFailMessageOperation marks an operation failed and persists the
// error. The operation stays queryable until the application retries or
// cancels it.
func (c *Controller) DidFailMessageOperation(op *record.MessageOperation, opErr error) error {
	if err := transition(op, record.OperationFailed); err != nil {
		return err
	}
	op.Error = opErr.Error()
	if err := c.store.SetMessageOperations([]record.MessageOperation{*op}); err != nil {
		return fmt.Errorf("persist failed operation: %w", err)
	}
	c.publish(bus.KindOperationFailed, op.ID)
	return nil
}

// DidCancelMessageOperation removes an operation without further action;
// the underlying message mutation is abandoned.
func (c *Controller) DidCancelMessageOperation(op *record.MessageOperation) error {
	if err := c.store.DeleteMessageOperations([]string{op.ID}); err != nil {
		return fmt.Errorf("remove cancelled operation: %w", err)
	}
	c.publish(bus.KindOperationCancelled, op.ID)
	return nil
}

// RetryMessageOperation replaces a failed operation with a fresh pending
// one carrying the same message snapshot. The old record is removed; the
// new operation is returned for the caller to execute.
func (c *Controller) RetryMessageOperation(op *record.MessageOperation) (*record.MessageOperation, error) {
	if op.Status != record.OperationFailed {
		return nil, fmt.Errorf("cannot retry operation %q in status %s", op.ID, op.Status)
	}
	if err := c.store.DeleteMessageOperations([]string{op.ID}); err != nil {
		return nil, fmt.Errorf("remove failed operation: %w", err)
	}
	next := record.NewMessageOperation(op.Message, op.ConversationID, op.Type)
	if err := c.store.SetMessageOperations([]record.MessageOperation{*next}); err != nil {
		return nil, fmt.Errorf("persist retried operation: %w", err)
	}
	c.publish(bus.KindOperationStarted, next.ID)
	return next, nil
}

// FetchMessageOperations lists operations for a conversation, optionally
// filtered by type (empty matches all).
func (c *Controller) FetchMessageOperations(conversationID string, typ record.OperationType, limit int) ([]record.MessageOperation, error) {
	return c.store.GetMessageOperations(store.OperationQuery{
		ConversationID: conversationID,
		Type:           typ,
	}, limit)
}

// FetchMessageOperationsForMessage lists operations targeting one message,
// optionally filtered by type.
func (c *Controller) FetchMessageOperationsForMessage(messageID string, typ record.OperationType, limit int) ([]record.MessageOperation, error) {
	return c.store.GetMessageOperations(store.OperationQuery{
		MessageID: messageID,
		Type:      typ,
	}, limit)
}

// FetchMessageOperation returns one operation by identifier, or nil.
func (c *Controller) FetchMessageOperation(id string) (*record.MessageOperation, error) {
	return c.store.GetMessageOperation(id)
}

// FailMessageOperations bulk-transitions all pending operations matching
// the query to failed with the given error. Used when an external trigger
// (session invalidated, app backgrounded) aborts in-flight work.
func (c *Controller) FailMessageOperations(q store.OperationQuery, opErr error) (int64, error) {
	n, err := c.store.FailMessageOperations(q, opErr)
	if err != nil {
		return 0, fmt.Errorf("bulk fail operations: %w", err)
	}
	if n > 0 {
		c.publish(bus.KindOperationFailed, n)
	}
	return n, nil
}

// FailAllPendingOperations bulk-fails every pending operation.
func (c *Controller) FailAllPendingOperations(opErr error) (int64, error) {
	return c.FailMessageOperations(store.OperationQuery{}, opErr)
}

// FetchParticipants returns cached participants for the given user IDs.
func (c *Controller) FetchParticipants(ids []string) ([]record.Participant, error) {
	return c.store.GetParticipants(ids)
}

// SetParticipants upserts participant profiles into the cache.
func (c *Controller) SetParticipants(ps []record.Participant) error {
	if err := c.store.SetParticipants(ps); err != nil {
		return fmt.Errorf("upsert participants: %w", err)
	}
	return nil
}

// SearchMessages full-text searches cached message bodies.
func (c *Controller) SearchMessages(query, conversationID string, limit int) ([]store.SearchResult, error) {
	return c.store.SearchMessages(query, conversationID, limit)
}

func (c *Controller) publish(kind string, payload any) {
	c.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func messageIDs(msgs []record.Message) []string {
	ids := make([]string, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	return ids
}

func operationIDs(ops []record.MessageOperation) []string {
	ids := make([]string, len(ops))
	for i := range ops {
		ids[i] = ops[i].ID
	}
	return ids
}
