package queue

import (
	"encoding/json"
	"time"
)

// CascadeMessage asks the sweeper to delete every transaction that still
// references a removed wallet. It carries only the wallet id; the worker
// reads state from the store, so redelivery is harmless.
type CascadeMessage struct {
	WalletID  string    `json:"wallet_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewCascadeMessage(walletID string) *CascadeMessage {
	return &CascadeMessage{
		WalletID:  walletID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *CascadeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CascadeMessageFromJSON(data []byte) (*CascadeMessage, error) {
	var msg CascadeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
