package cache

import (
	"fmt"
	"slices"

	"github.com/pserra/chatcache/record"
)

// validTransitions defines allowed operation status transitions. Failed
// and Success are terminal: retry replaces a failed operation with a new
// pending one instead of transitioning in place.
var validTransitions = map[record.OperationStatus][]record.OperationStatus{
	record.OperationPending: {record.OperationSuccess, record.OperationFailed},
	record.OperationSuccess: {},
	record.OperationFailed:  {},
}

// transition moves an operation to a new status. Returns an error if the
// transition is invalid.
func transition(op *record.MessageOperation, to record.OperationStatus) error {
	allowed := validTransitions[op.Status]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid operation transition from %s to %s", op.Status, to)
	}
	op.Status = to
	return nil
}
