package record

import "time"

// ReceiptStatus is the per-user delivery state of a message.
type ReceiptStatus string

const (
	ReceiptDelivering ReceiptStatus = "delivering"
	ReceiptDelivered  ReceiptStatus = "delivered"
	ReceiptRead       ReceiptStatus = "read"
)

// Receipt reports whether one user has received or read a message.
type Receipt struct {
	UserID      string
	DeliveredAt time.Time
	ReadAt      time.Time
	Status      ReceiptStatus
}

// ReceiptFromMap builds a receipt from a server response entry.
func ReceiptFromMap(dict map[string]any) *Receipt {
	r := &Receipt{
		UserID:      stringField(dict, "user_id"),
		DeliveredAt: timeField(dict, "delivered_at"),
		ReadAt:      timeField(dict, "read_at"),
		Status:      ReceiptDelivering,
	}
	if !r.DeliveredAt.IsZero() {
		r.Status = ReceiptDelivered
	}
	if !r.ReadAt.IsZero() {
		r.Status = ReceiptRead
	}
	return r
}
