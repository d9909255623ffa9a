// Package record holds the domain model shared by the local cache and the
// remote record API: messages, conversations, participants, operations and
// the generic record envelope they serialize to on the wire.
package record

import "time"

// Record type names as stored on the backend.
const (
	TypeMessage      = "message"
	TypeConversation = "conversation"
	TypeParticipant  = "participant"
	TypeUserChannel  = "user_channel"
)

// Record is the generic envelope the remote API speaks. Typed models
// convert to and from it via their ToRecord/FromRecord helpers.
type Record struct {
	ID        string
	Type      string
	CreatorID string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    map[string]any
}

// ChangeEvent identifies the kind of server-side record change.
type ChangeEvent string

const (
	ChangeCreate ChangeEvent = "create"
	ChangeUpdate ChangeEvent = "update"
	ChangeDelete ChangeEvent = "delete"
)

// Change is a push-delivered notification that a record was created,
// updated or deleted on the server.
type Change struct {
	Event      ChangeEvent
	RecordType string
	Record     *Record
}

// stringField reads a string field from a record, tolerating absence.
func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// boolField reads a bool field from a record, tolerating absence.
func boolField(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

// mapField reads a nested map field from a record, tolerating absence.
func mapField(fields map[string]any, key string) map[string]any {
	if v, ok := fields[key].(map[string]any); ok {
		return v
	}
	return nil
}

// timeField reads a time field stored as unix milliseconds or time.Time.
func timeField(fields map[string]any, key string) time.Time {
	switch v := fields[key].(type) {
	case time.Time:
		return v
	case int64:
		return time.UnixMilli(v)
	case float64:
		return time.UnixMilli(int64(v))
	}
	return time.Time{}
}
