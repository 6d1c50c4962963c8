package events

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the change stream. Downstream consumers (the sheet
// exporter, the external narrative indexer) subscribe to these; the SQLite
// row remains the source of truth either way.
const (
	KindSnapshotCreated    = "snapshot_created"
	KindSnapshotUpdated    = "snapshot_updated"
	KindTransactionAdded   = "transaction_added"
	KindTransactionDeleted = "transaction_deleted"
)

// ChangeEvent is a lightweight notification: consumers fetch full rows from
// the database using the IDs, the event itself never carries balances.
type ChangeEvent struct {
	Kind      string    `json:"kind"`
	EntityID  int64     `json:"entity_id"`
	AccountID int64     `json:"account_id,omitempty"`
	Year      int       `json:"year,omitempty"`
	Month     int       `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotEvent(kind string, snapshotID, accountID int64, year, month int) *ChangeEvent {
	return &ChangeEvent{
		Kind:      kind,
		EntityID:  snapshotID,
		AccountID: accountID,
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func NewTransactionEvent(kind string, transactionID, accountID int64) *ChangeEvent {
	return &ChangeEvent{
		Kind:      kind,
		EntityID:  transactionID,
		AccountID: accountID,
		Timestamp: time.Now(),
	}
}

func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
