package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/pserra/chatcache/record"
)

// MessageQuery is a conjunction of field comparisons over cached messages.
// Zero-valued fields are not applied.
type MessageQuery struct {
	ConversationID string    // conversation-equals
	IDs            []string  // identifier-in-set
	Before         time.Time // exclusive upper bound on the sort column
	IncludeDeleted bool      // include soft-deleted rows
}

// OperationQuery is a conjunction of field comparisons over cached
// message operations. Zero-valued fields are not applied.
type OperationQuery struct {
	ConversationID string
	MessageID      string
	Type           record.OperationType
	Status         record.OperationStatus
}

// sortColumn maps a sort key to its indexed column, rejecting unknown keys
// at the interface boundary.
func sortColumn(order record.SortKey) (string, error) {
	switch order {
	case record.ByCreationTime:
		return "created_at", nil
	case record.ByEditTime:
		return "edited_at", nil
	}
	return "", fmt.Errorf("invalid sort key %d", order)
}

// where renders the query to a WHERE clause fragment and its arguments.
// sortCol receives the Before comparison so pagination follows the caller's
// ordering.
func (q MessageQuery) where(sortCol string) (string, []any) {
	var conds []string
	var args []any

	if q.ConversationID != "" {
		conds = append(conds, "conversation_id = ?")
		args = append(args, q.ConversationID)
	}
	if len(q.IDs) > 0 {
		conds = append(conds, "record_id IN ("+placeholders(len(q.IDs))+")")
		for _, id := range q.IDs {
			args = append(args, id)
		}
	}
	if !q.Before.IsZero() {
		conds = append(conds, sortCol+" < ?")
		args = append(args, q.Before.UnixMilli())
	}
	if !q.IncludeDeleted {
		conds = append(conds, "deleted = 0")
	}
	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

func (q OperationQuery) where() (string, []any) {
	var conds []string
	var args []any

	if q.ConversationID != "" {
		conds = append(conds, "conversation_id = ?")
		args = append(args, q.ConversationID)
	}
	if q.MessageID != "" {
		conds = append(conds, "record_id = ?")
		args = append(args, q.MessageID)
	}
	if q.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(q.Type))
	}
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(q.Status))
	}
	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
