package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the local-only delivery state of a cached message.
type SyncStatus string

const (
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// ConversationStatus is the conversation-wide read/delivery state of a
// message, derived on the server from receipts.
type ConversationStatus string

const (
	ConversationStatusDelivering ConversationStatus = "delivering"
	ConversationStatusDelivered  ConversationStatus = "delivered"
	ConversationStatusSomeRead   ConversationStatus = "some_read"
	ConversationStatusAllRead    ConversationStatus = "all_read"
)

// Message is a single chat message within a conversation.
type Message struct {
	ID                 string
	ConversationID     string
	CreatorID          string
	Body               string
	AttachmentID       string
	Metadata           map[string]any
	SyncStatus         SyncStatus
	ConversationStatus ConversationStatus
	Deleted            bool
	CreatedAt          time.Time
	EditedAt           time.Time
}

// NewMessage creates an unsynced message composed by the given user.
func NewMessage(conversationID, creatorID, body string, metadata map[string]any) *Message {
	now := time.Now()
	return &Message{
		ID:                 uuid.New().String(),
		ConversationID:     conversationID,
		CreatorID:          creatorID,
		Body:               body,
		Metadata:           metadata,
		SyncStatus:         SyncStatusSyncing,
		ConversationStatus: ConversationStatusDelivering,
		CreatedAt:          now,
		EditedAt:           now,
	}
}

// Clone returns a deep copy, used for operation snapshots.
func (m *Message) Clone() *Message {
	c := *m
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ToRecord converts the message to its generic record form.
func (m *Message) ToRecord() *Record {
	return &Record{
		ID:        m.ID,
		Type:      TypeMessage,
		CreatorID: m.CreatorID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.EditedAt,
		Fields: map[string]any{
			"conversation_id":     m.ConversationID,
			"body":                m.Body,
			"attachment_id":       m.AttachmentID,
			"metadata":            m.Metadata,
			"conversation_status": string(m.ConversationStatus),
			"deleted":             m.Deleted,
		},
	}
}

// MessageFromRecord converts a generic record into a Message. Records
// arriving from the server are considered synced.
func MessageFromRecord(r *Record) (*Message, error) {
	if r.Type != TypeMessage {
		return nil, fmt.Errorf("record %q has type %q, want %q", r.ID, r.Type, TypeMessage)
	}
	status := ConversationStatus(stringField(r.Fields, "conversation_status"))
	if status == "" {
		status = ConversationStatusDelivering
	}
	return &Message{
		ID:                 r.ID,
		ConversationID:     stringField(r.Fields, "conversation_id"),
		CreatorID:          r.CreatorID,
		Body:               stringField(r.Fields, "body"),
		AttachmentID:       stringField(r.Fields, "attachment_id"),
		Metadata:           mapField(r.Fields, "metadata"),
		SyncStatus:         SyncStatusSynced,
		ConversationStatus: status,
		Deleted:            boolField(r.Fields, "deleted"),
		CreatedAt:          r.CreatedAt,
		EditedAt:           r.UpdatedAt,
	}, nil
}
