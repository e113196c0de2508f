package amqp

import (
	"encoding/json"
	"time"
)

// ReceiptExportMessage is a lightweight message asking the worker to export a
// saved receipt. It carries only the receipt ID, the worker fetches the full
// receipt from the database.
type ReceiptExportMessage struct {
	ReceiptID string    `json:"receipt_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReceiptExportMessage creates an export message for the given receipt ID
func NewReceiptExportMessage(receiptID string) *ReceiptExportMessage {
	return &ReceiptExportMessage{
		ReceiptID: receiptID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReceiptExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReceiptExportMessageFromJSON creates a message from JSON bytes
func ReceiptExportMessageFromJSON(data []byte) (*ReceiptExportMessage, error) {
	var msg ReceiptExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
