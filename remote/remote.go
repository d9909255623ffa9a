// Package remote defines the record API the cache layer consumes. The
// concrete transport (HTTP, gRPC, websocket) lives outside this module;
// consumers supply an implementation when composing a session.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/pserra/chatcache/record"
)

// ErrNotFound is returned by Fetch and Delete for missing records.
var ErrNotFound = errors.New("remote: record not found")

// Query describes a record fetch: a record type plus a conjunction of
// field comparisons.
type Query struct {
	RecordType     string
	IDs            []string  // identifier-in-set
	ConversationID string    // conversation-equals
	Before         time.Time // exclusive upper bound on the sort key
	Limit          int
	Order          record.SortKey

	// DistinctParticipants asks the server for the conversation whose
	// participant set equals this set, for distinct-by-participants reuse.
	DistinctParticipants []string
}

// Result is the outcome of a fetch: matching records plus the IDs of
// records the server reports as deleted within the queried range.
type Result struct {
	Records    []*record.Record
	DeletedIDs []string
}

// API is the remote backend the chat extension talks to.
//
// Call carries the server-computed operations that are not plain record
// CRUD: receipts, unread counts, typing fan-out, channel subscription.
type API interface {
	Fetch(ctx context.Context, q Query) (*Result, error)
	Save(ctx context.Context, rec *record.Record) (*record.Record, error)
	Delete(ctx context.Context, recordType, recordID string) error
	Call(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}
