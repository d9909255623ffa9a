package chat

import (
	"context"
	"fmt"

	"github.com/pserra/chatcache/record"
)

// CreateMessage composes and sends a new message in a conversation.
func (e *Extension) CreateMessage(ctx context.Context, conversationID, body string, metadata map[string]any) (*record.Message, error) {
	return e.AddMessage(ctx, record.NewMessage(conversationID, e.userID, body, metadata))
}

// AddMessage sends a locally composed message. The message is written to
// the cache optimistically and tracked by a pending operation; on remote
// failure the operation stays queryable for retry or cancel.
func (e *Extension) AddMessage(ctx context.Context, msg *record.Message) (*record.Message, error) {
	op, err := e.cache.DidStartMessage(msg, msg.ConversationID, record.OperationAdd)
	if err != nil {
		return nil, err
	}
	// Optimistic write so the message shows up before the save resolves.
	msg.SyncStatus = record.SyncStatusSyncing
	if err := e.cache.SetMessages([]record.Message{*msg}); err != nil {
		return nil, err
	}
	return e.executeOperation(ctx, op)
}

// EditMessage saves edits made to a message. The caller mutates the
// message (body, metadata) before calling.
func (e *Extension) EditMessage(ctx context.Context, msg *record.Message) (*record.Message, error) {
	op, err := e.cache.DidStartMessage(msg, msg.ConversationID, record.OperationEdit)
	if err != nil {
		return nil, err
	}
	return e.executeOperation(ctx, op)
}

// DeleteMessage deletes a message remotely and caches a soft-deletion
// marker on success.
func (e *Extension) DeleteMessage(ctx context.Context, msg *record.Message) error {
	op, err := e.cache.DidStartMessage(msg, msg.ConversationID, record.OperationDelete)
	if err != nil {
		return err
	}
	_, err = e.executeOperation(ctx, op)
	return err
}

// FetchOutstandingOperations lists operations for a conversation,
// optionally filtered by type. After a relaunch this surfaces failed
// sends for user-driven retry or cancel.
func (e *Extension) FetchOutstandingOperations(conversationID string, typ record.OperationType, limit int) ([]record.MessageOperation, error) {
	return e.cache.FetchMessageOperations(conversationID, typ, limit)
}

// RetryOperation re-executes a failed operation. The failed record is
// replaced by a fresh pending operation which is then performed against
// the remote API.
func (e *Extension) RetryOperation(ctx context.Context, op *record.MessageOperation) (*record.MessageOperation, error) {
	next, err := e.cache.RetryMessageOperation(op)
	if err != nil {
		return nil, err
	}
	if _, err := e.executeOperation(ctx, next); err != nil {
		return next, err
	}
	return next, nil
}

// CancelOperation abandons an operation. The in-flight remote call, if
// any, is not interrupted; only the bookkeeping is removed.
func (e *Extension) CancelOperation(op *record.MessageOperation) error {
	return e.cache.DidCancelMessageOperation(op)
}

// executeOperation performs the remote call an operation tracks and
// settles the operation's lifecycle accordingly.
func (e *Extension) executeOperation(ctx context.Context, op *record.MessageOperation) (*record.Message, error) {
	msg := op.Message

	switch op.Type {
	case record.OperationAdd, record.OperationEdit:
		saved, err := e.remote.Save(ctx, msg.ToRecord())
		if err != nil {
			return nil, e.settleFailure(op, msg, err)
		}
		result, err := record.MessageFromRecord(saved)
		if err != nil {
			return nil, e.settleFailure(op, msg, err)
		}
		if err := e.cache.DidCompleteMessageOperation(op); err != nil {
			return nil, err
		}
		if err := e.cache.DidSaveMessage(result); err != nil {
			return nil, err
		}
		return result, nil

	case record.OperationDelete:
		if err := e.remote.Delete(ctx, record.TypeMessage, msg.ID); err != nil {
			return nil, e.settleFailure(op, msg, err)
		}
		if err := e.cache.DidCompleteMessageOperation(op); err != nil {
			return nil, err
		}
		if err := e.cache.DidDeleteMessage(msg); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown operation type %q", op.Type)
}

// settleFailure records the remote error on the operation and flips the
// optimistic cache row to failed. The original error is returned.
func (e *Extension) settleFailure(op *record.MessageOperation, msg *record.Message, cause error) error {
	if err := e.cache.DidFailMessageOperation(op, cause); err != nil {
		return err
	}
	if op.Type != record.OperationDelete {
		failed := msg.Clone()
		failed.SyncStatus = record.SyncStatusFailed
		if err := e.cache.SetMessages([]record.Message{*failed}); err != nil {
			return err
		}
	}
	return cause
}
