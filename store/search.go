package store

import (
	"fmt"
	"time"

	"github.com/pserra/chatcache/record"
)

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message record.Message
	Snippet string
}

// SearchMessages performs a full-text search on cached message bodies.
// Soft-deleted messages are excluded.
func (s *Store) SearchMessages(query string, conversationID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.record_id, m.conversation_id, m.creator_id, m.body, m.attachment_id, m.metadata,
		       m.sync_status, m.conversation_status, m.deleted, m.created_at, m.edited_at,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.record_id = f.record_id
		WHERE messages_fts MATCH ? AND m.deleted = 0`

	args := []any{query}
	if conversationID != "" {
		q += " AND m.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var meta, syncStatus, convStatus string
		var createdAt, editedAt int64
		m := &r.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.CreatorID, &m.Body, &m.AttachmentID, &meta,
			&syncStatus, &convStatus, &m.Deleted, &createdAt, &editedAt, &r.Snippet); err != nil {
			return nil, err
		}
		if err := decodeMetadata(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %q: %w", m.ID, err)
		}
		m.SyncStatus = record.SyncStatus(syncStatus)
		m.ConversationStatus = record.ConversationStatus(convStatus)
		m.CreatedAt = time.UnixMilli(createdAt)
		m.EditedAt = time.UnixMilli(editedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}
