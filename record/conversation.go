package record

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Conversation is a shared chat thread. Conversations are never cached
// locally; the type exists for the extension API and the record codec.
type Conversation struct {
	ID                     string
	Title                  string
	ParticipantIDs         []string
	AdminIDs               []string
	Metadata               map[string]any
	DistinctByParticipants bool
	LastMessageID          string
	LastReadMessageID      string
	UnreadCount            int
}

// NewConversation creates a conversation with a fresh identifier.
func NewConversation(title string, participantIDs []string) *Conversation {
	return &Conversation{
		ID:             uuid.New().String(),
		Title:          title,
		ParticipantIDs: dedupe(participantIDs),
	}
}

// AddParticipants adds user IDs to the participant set.
func (c *Conversation) AddParticipants(userIDs ...string) {
	c.ParticipantIDs = dedupe(append(c.ParticipantIDs, userIDs...))
}

// RemoveParticipants removes user IDs from both the participant and admin
// sets.
func (c *Conversation) RemoveParticipants(userIDs ...string) {
	c.ParticipantIDs = remove(c.ParticipantIDs, userIDs)
	c.AdminIDs = remove(c.AdminIDs, userIDs)
}

// AddAdmins adds user IDs to the admin set. Admins are kept inside the
// participant set.
func (c *Conversation) AddAdmins(userIDs ...string) {
	c.AdminIDs = dedupe(append(c.AdminIDs, userIDs...))
	c.AddParticipants(userIDs...)
}

// RemoveAdmins removes user IDs from the admin set only.
func (c *Conversation) RemoveAdmins(userIDs ...string) {
	c.AdminIDs = remove(c.AdminIDs, userIDs)
}

// HasSameParticipants reports whether the conversation's participant set
// equals the given set, ignoring order and duplicates. Used for the
// distinct-by-participants reuse policy.
func (c *Conversation) HasSameParticipants(userIDs []string) bool {
	return slices.Equal(dedupe(c.ParticipantIDs), dedupe(userIDs))
}

// ToRecord converts the conversation to its generic record form.
func (c *Conversation) ToRecord() *Record {
	return &Record{
		ID:   c.ID,
		Type: TypeConversation,
		Fields: map[string]any{
			"title":                    c.Title,
			"participant_ids":          c.ParticipantIDs,
			"admin_ids":                c.AdminIDs,
			"metadata":                 c.Metadata,
			"distinct_by_participants": c.DistinctByParticipants,
			"last_message_id":          c.LastMessageID,
			"last_read_message_id":     c.LastReadMessageID,
			"unread_count":             c.UnreadCount,
		},
	}
}

// ConversationFromRecord converts a generic record into a Conversation.
func ConversationFromRecord(r *Record) (*Conversation, error) {
	if r.Type != TypeConversation {
		return nil, fmt.Errorf("record %q has type %q, want %q", r.ID, r.Type, TypeConversation)
	}
	return &Conversation{
		ID:                     r.ID,
		Title:                  stringField(r.Fields, "title"),
		ParticipantIDs:         stringSliceField(r.Fields, "participant_ids"),
		AdminIDs:               stringSliceField(r.Fields, "admin_ids"),
		Metadata:               mapField(r.Fields, "metadata"),
		DistinctByParticipants: boolField(r.Fields, "distinct_by_participants"),
		LastMessageID:          stringField(r.Fields, "last_message_id"),
		LastReadMessageID:      stringField(r.Fields, "last_read_message_id"),
		UnreadCount:            intField(r.Fields, "unread_count"),
	}, nil
}

func stringSliceField(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func dedupe(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func remove(ids, toRemove []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(toRemove, id) {
			out = append(out, id)
		}
	}
	return out
}
