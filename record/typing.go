package record

import (
	"slices"
	"time"
)

// TypingEvent is a typing state reported by one user.
type TypingEvent string

const (
	TypingBegin    TypingEvent = "begin"
	TypingPause    TypingEvent = "pause"
	TypingFinished TypingEvent = "finished"
)

type typingEntry struct {
	event TypingEvent
	at    time.Time
}

// TypingIndicator aggregates the latest typing event per user in one
// conversation.
type TypingIndicator struct {
	ConversationID string
	entries        map[string]typingEntry
}

// NewTypingIndicator creates an empty indicator for a conversation.
func NewTypingIndicator(conversationID string) *TypingIndicator {
	return &TypingIndicator{
		ConversationID: conversationID,
		entries:        make(map[string]typingEntry),
	}
}

// TypingIndicatorFromMap builds an indicator from a push payload of the
// shape {userID: {"event": ..., "at": unix-ms}}.
func TypingIndicatorFromMap(conversationID string, dict map[string]any) *TypingIndicator {
	t := NewTypingIndicator(conversationID)
	for userID, raw := range dict {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		t.entries[userID] = typingEntry{
			event: TypingEvent(stringField(entry, "event")),
			at:    timeField(entry, "at"),
		}
	}
	return t
}

// Set records a typing event for a user.
func (t *TypingIndicator) Set(userID string, event TypingEvent, at time.Time) {
	t.entries[userID] = typingEntry{event: event, at: at}
}

// UserIDs returns all users with a recorded event, sorted.
func (t *TypingIndicator) UserIDs() []string {
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TypingUserIDs returns the users whose latest event is begin, sorted.
func (t *TypingIndicator) TypingUserIDs() []string {
	var ids []string
	for id, e := range t.entries {
		if e.event == TypingBegin {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// LastEvent returns the latest event and its time for a user.
func (t *TypingIndicator) LastEvent(userID string) (TypingEvent, time.Time, bool) {
	e, ok := t.entries[userID]
	return e.event, e.at, ok
}

// MergedWith returns a new indicator combining both; for users present in
// both, the entry with the later event time wins.
func (t *TypingIndicator) MergedWith(other *TypingIndicator) *TypingIndicator {
	merged := NewTypingIndicator(t.ConversationID)
	for id, e := range t.entries {
		merged.entries[id] = e
	}
	for id, e := range other.entries {
		if cur, ok := merged.entries[id]; !ok || e.at.After(cur.at) {
			merged.entries[id] = e
		}
	}
	return merged
}
