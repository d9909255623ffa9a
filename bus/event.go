package bus

import "time"

// Event kinds published by the cache layer. Subscribers filter by
// namespace prefix, e.g. "record." or "operation.".
const (
	KindRecordCreated      = "record.created"
	KindRecordUpdated      = "record.updated"
	KindRecordDeleted      = "record.deleted"
	KindMessageUpserted    = "cache.message.upserted"
	KindMessageDeleted     = "cache.message.deleted"
	KindOperationStarted   = "operation.started"
	KindOperationCompleted = "operation.completed"
	KindOperationFailed    = "operation.failed"
	KindOperationCancelled = "operation.cancelled"
	KindTypingIndicator    = "typing.indicator"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
