package amqp

import (
	"encoding/json"
	"strings"
	"time"

	"mindspend/internal/core"
)

// Refresh reasons carried on SummaryRefreshMessage.
const (
	ReasonEventCreated = "event_created"
	ReasonEventUpdated = "event_updated"
	ReasonEventDeleted = "event_deleted"
	ReasonResync       = "resync"
)

// SummaryRefreshMessage asks a worker to recompute one (owner, date) summary.
// The worker reloads the events itself, so the message carries no amounts.
type SummaryRefreshMessage struct {
	OwnerID   string    `json:"ownerId"`
	Date      string    `json:"date"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSummaryRefreshMessage(ownerID, date, reason string) *SummaryRefreshMessage {
	return &SummaryRefreshMessage{
		OwnerID:   ownerID,
		Date:      date,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *SummaryRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects messages that cannot name a summary row.
func (m *SummaryRefreshMessage) Validate() error {
	if strings.TrimSpace(m.OwnerID) == "" {
		return &core.ValidationError{Field: "ownerId", Reason: "required"}
	}
	return core.ValidateDateKey(m.Date)
}

// SummaryRefreshMessageFromJSON decodes and validates a message body.
func SummaryRefreshMessageFromJSON(data []byte) (*SummaryRefreshMessage, error) {
	var msg SummaryRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
