package domain

import "time"

// InboundMessage is a user message received from a channel.
type InboundMessage struct {
	Contact   string            `json:"contact"`
	Text      string            `json:"text"`
	Channel   string            `json:"channel"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a bot message sent through a channel, recorded for
// logging symmetry.
type OutboundMessage struct {
	Contact   string    `json:"contact"`
	Text      string    `json:"text"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemEventCode identifies out-of-band events affecting a session.
type SystemEventCode string

const (
	EventHumanAssigned  SystemEventCode = "human_assigned"
	EventHumanReleased  SystemEventCode = "human_released"
	EventOrderConverted SystemEventCode = "order_converted"
	EventOrderFailed    SystemEventCode = "order_failed"
	EventOrderReset     SystemEventCode = "order_reset"
	EventBlacklisted    SystemEventCode = "blacklisted"
	EventWhitelisted    SystemEventCode = "whitelisted"
)

// Valid reports whether the code is recognized.
func (c SystemEventCode) Valid() bool {
	switch c {
	case EventHumanAssigned, EventHumanReleased, EventOrderConverted,
		EventOrderFailed, EventOrderReset, EventBlacklisted, EventWhitelisted:
		return true
	}
	return false
}

// SystemEvent is an operator- or backend-originated session event.
type SystemEvent struct {
	Contact   string            `json:"contact"`
	Code      SystemEventCode   `json:"code"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
