package amqp

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/xid"
)

// RefreshMessage asks the worker to re-read a dataset from its upstream
// source and store a new snapshot. An empty Dataset means every dataset.
type RefreshMessage struct {
	ID        string    `json:"id"`
	Dataset   string    `json:"dataset,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRefreshMessage(dataset, reason string) *RefreshMessage {
	return &RefreshMessage{
		ID:        xid.New().String(),
		Dataset:   dataset,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
