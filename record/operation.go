package record

import (
	"time"

	"github.com/google/uuid"
)

// OperationType identifies the mutating action an operation tracks.
type OperationType string

const (
	OperationAdd    OperationType = "add"
	OperationEdit   OperationType = "edit"
	OperationDelete OperationType = "delete"
)

// OperationStatus is the lifecycle state of a message operation.
//
// Pending is the only initial state. Success is terminal and transient:
// a completed operation is removed from the store immediately. Failed is
// terminal in place; retry deletes the operation and creates a new one.
type OperationStatus string

const (
	OperationPending OperationStatus = "pending"
	OperationSuccess OperationStatus = "success"
	OperationFailed  OperationStatus = "failed"
)

// MessageOperation tracks one in-flight or failed mutating action on a
// message. It is persisted so outstanding operations survive restarts.
type MessageOperation struct {
	ID             string
	MessageID      string
	ConversationID string
	Type           OperationType
	Status         OperationStatus
	SendDate       time.Time
	Message        *Message // snapshot of the message at submission time
	Error          string   // set when Status is OperationFailed
}

// NewMessageOperation creates a pending operation for the given message.
// The message is snapshotted so a later retry resends exactly what the
// user submitted.
func NewMessageOperation(msg *Message, conversationID string, typ OperationType) *MessageOperation {
	return &MessageOperation{
		ID:             uuid.New().String(),
		MessageID:      msg.ID,
		ConversationID: conversationID,
		Type:           typ,
		Status:         OperationPending,
		SendDate:       time.Now(),
		Message:        msg.Clone(),
	}
}
