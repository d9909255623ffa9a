package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pserra/chatcache/record"
)

// GetParticipants returns cached participants for the given identifiers,
// or all cached participants when ids is empty. Missing identifiers are
// simply absent from the result.
func (s *Store) GetParticipants(ids []string) ([]record.Participant, error) {
	query := `SELECT record_id, name, avatar_url, metadata FROM participants`
	var args []any
	if len(ids) > 0 {
		query += ` WHERE record_id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY record_id ASC`

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ps []record.Participant
	for rows.Next() {
		var p record.Participant
		var meta string
		if err := rows.Scan(&p.ID, &p.Name, &p.AvatarURL, &meta); err != nil {
			return nil, err
		}
		if err := decodeMetadata(meta, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %q: %w", p.ID, err)
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

// GetParticipant returns a single cached participant, or nil if absent.
func (s *Store) GetParticipant(id string) (*record.Participant, error) {
	var p record.Participant
	var meta string
	err := s.QueryRow(`SELECT record_id, name, avatar_url, metadata FROM participants WHERE record_id = ?`, id).
		Scan(&p.ID, &p.Name, &p.AvatarURL, &meta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodeMetadata(meta, &p.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %q: %w", p.ID, err)
	}
	return &p, nil
}

// SetParticipants upserts participants in a single transaction.
func (s *Store) SetParticipants(ps []record.Participant) error {
	if len(ps) == 0 {
		return nil
	}
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for i := range ps {
		p := &ps[i]
		meta, err := encodeMetadata(p.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %q: %w", p.ID, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO participants (record_id, name, avatar_url, metadata, cached_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(record_id) DO UPDATE SET
				name = CASE WHEN excluded.name != '' THEN excluded.name ELSE participants.name END,
				avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE participants.avatar_url END,
				metadata = excluded.metadata,
				cached_at = excluded.cached_at`,
			p.ID, p.Name, p.AvatarURL, meta, now); err != nil {
			return fmt.Errorf("upsert participant %q: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// ParticipantCount returns the number of cached participants.
func (s *Store) ParticipantCount() (int64, error) {
	var count int64
	err := s.QueryRow(`SELECT COUNT(*) FROM participants`).Scan(&count)
	return count, err
}
