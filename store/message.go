package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pserra/chatcache/record"
)

const messageColumns = `record_id, conversation_id, creator_id, body, attachment_id, metadata,
	sync_status, conversation_status, deleted, created_at, edited_at`

const upsertMessageSQL = `
	INSERT INTO messages (record_id, conversation_id, creator_id, body, attachment_id, metadata,
		sync_status, conversation_status, deleted, created_at, edited_at, cached_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(record_id) DO UPDATE SET
		conversation_id = excluded.conversation_id,
		creator_id = excluded.creator_id,
		body = excluded.body,
		attachment_id = excluded.attachment_id,
		metadata = excluded.metadata,
		sync_status = excluded.sync_status,
		conversation_status = excluded.conversation_status,
		deleted = excluded.deleted,
		created_at = excluded.created_at,
		edited_at = excluded.edited_at,
		cached_at = excluded.cached_at`

// GetMessages returns cached messages matching the query, ordered by the
// sort key descending with ties broken by record ID ascending, truncated
// to limit.
func (s *Store) GetMessages(q MessageQuery, limit int, order record.SortKey) ([]record.Message, error) {
	col, err := sortColumn(order)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	where, args := q.where(col)
	query := fmt.Sprintf(`SELECT %s FROM messages WHERE %s ORDER BY %s DESC, record_id ASC LIMIT ?`,
		messageColumns, where, col)
	args = append(args, limit)

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []record.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a single cached message by identifier, or nil if it
// is not cached.
func (s *Store) GetMessage(id string) (*record.Message, error) {
	row := s.QueryRow(fmt.Sprintf(`SELECT %s FROM messages WHERE record_id = ?`, messageColumns), id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SetMessages upserts messages in a single transaction. An existing
// identifier is overwritten; callers are responsible for only writing
// newer data.
func (s *Store) SetMessages(msgs []record.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for i := range msgs {
		m := &msgs[i]
		meta, err := encodeMetadata(m.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %q: %w", m.ID, err)
		}
		if _, err := tx.Exec(upsertMessageSQL,
			m.ID, m.ConversationID, m.CreatorID, m.Body, m.AttachmentID, meta,
			string(m.SyncStatus), string(m.ConversationStatus), m.Deleted,
			m.CreatedAt.UnixMilli(), m.EditedAt.UnixMilli(), now); err != nil {
			return fmt.Errorf("upsert message %q: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteMessages physically removes rows by identifier. Used once a fetch
// confirms a server-side deletion.
func (s *Store) DeleteMessages(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.Exec(`DELETE FROM messages WHERE record_id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// MessageCount returns the number of cached messages, soft-deleted rows
// included.
func (s *Store) MessageCount() (int64, error) {
	var count int64
	err := s.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*record.Message, error) {
	var m record.Message
	var meta string
	var syncStatus, convStatus string
	var createdAt, editedAt int64
	if err := row.Scan(&m.ID, &m.ConversationID, &m.CreatorID, &m.Body, &m.AttachmentID, &meta,
		&syncStatus, &convStatus, &m.Deleted, &createdAt, &editedAt); err != nil {
		return nil, err
	}
	if err := decodeMetadata(meta, &m.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %q: %w", m.ID, err)
	}
	m.SyncStatus = record.SyncStatus(syncStatus)
	m.ConversationStatus = record.ConversationStatus(convStatus)
	m.CreatedAt = time.UnixMilli(createdAt)
	m.EditedAt = time.UnixMilli(editedAt)
	return &m, nil
}

func encodeMetadata(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMetadata(data string, meta *map[string]any) error {
	if data == "" || data == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(data), meta)
}
