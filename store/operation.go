package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pserra/chatcache/record"
)

const operationColumns = `operation_id, record_id, conversation_id, type, status, send_date, record, error_message`

// GetMessageOperations returns cached operations matching the query,
// newest first, truncated to limit.
func (s *Store) GetMessageOperations(q OperationQuery, limit int) ([]record.MessageOperation, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := q.where()
	query := fmt.Sprintf(`SELECT %s FROM message_operations WHERE %s ORDER BY send_date DESC, operation_id ASC LIMIT ?`,
		operationColumns, where)
	args = append(args, limit)

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ops []record.MessageOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

// GetMessageOperation returns a single operation by identifier, or nil if
// it is not cached.
func (s *Store) GetMessageOperation(id string) (*record.MessageOperation, error) {
	row := s.QueryRow(fmt.Sprintf(`SELECT %s FROM message_operations WHERE operation_id = ?`, operationColumns), id)
	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

// SetMessageOperations upserts operations in a single transaction.
func (s *Store) SetMessageOperations(ops []record.MessageOperation) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range ops {
		op := &ops[i]
		snapshot, err := encodeSnapshot(op.Message)
		if err != nil {
			return fmt.Errorf("encode snapshot for %q: %w", op.ID, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO message_operations (operation_id, record_id, conversation_id, type, status, send_date, record, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(operation_id) DO UPDATE SET
				status = excluded.status,
				record = excluded.record,
				error_message = excluded.error_message`,
			op.ID, op.MessageID, op.ConversationID, string(op.Type), string(op.Status),
			op.SendDate.UnixMilli(), snapshot, op.Error); err != nil {
			return fmt.Errorf("upsert operation %q: %w", op.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteMessageOperations removes operation rows by identifier.
func (s *Store) DeleteMessageOperations(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.Exec(`DELETE FROM message_operations WHERE operation_id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

// FailMessageOperations transitions all pending operations matching the
// query to failed with the given error, in one statement. Returns the
// number of operations transitioned.
func (s *Store) FailMessageOperations(q OperationQuery, opErr error) (int64, error) {
	q.Status = record.OperationPending
	where, args := q.where()
	args = append([]any{string(record.OperationFailed), opErr.Error()}, args...)
	res, err := s.Exec(`UPDATE message_operations SET status = ?, error_message = ? WHERE `+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// OperationCount returns the number of cached message operations.
func (s *Store) OperationCount() (int64, error) {
	var count int64
	err := s.QueryRow(`SELECT COUNT(*) FROM message_operations`).Scan(&count)
	return count, err
}

func scanOperation(row rowScanner) (*record.MessageOperation, error) {
	var op record.MessageOperation
	var typ, status, snapshot string
	var sendDate int64
	if err := row.Scan(&op.ID, &op.MessageID, &op.ConversationID, &typ, &status,
		&sendDate, &snapshot, &op.Error); err != nil {
		return nil, err
	}
	op.Type = record.OperationType(typ)
	op.Status = record.OperationStatus(status)
	op.SendDate = time.UnixMilli(sendDate)
	if err := decodeSnapshot(snapshot, &op.Message); err != nil {
		return nil, fmt.Errorf("decode snapshot for %q: %w", op.ID, err)
	}
	return &op, nil
}

func encodeSnapshot(msg *record.Message) (string, error) {
	if msg == nil {
		return "{}", nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSnapshot(data string, msg **record.Message) error {
	if data == "" || data == "{}" {
		return nil
	}
	var m record.Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return err
	}
	*msg = &m
	return nil
}
