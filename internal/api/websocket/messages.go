package websocket

import (
	"time"

	"github.com/pressline/encoderd/internal/monitor"
	"github.com/pressline/encoderd/internal/s7"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeReading      MessageType = "reading"
	MessageTypeReadError    MessageType = "read_error"
	MessageTypeStateChange  MessageType = "state_change"
	MessageTypeMonitorStats MessageType = "monitor_stats"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ReadingData carries one poll result to subscribers.
type ReadingData struct {
	SessionID  string    `json:"session_id"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	OutOfRange bool      `json:"out_of_range,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// ReadErrorData carries a failed poll cycle.
type ReadErrorData struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
}

// StateChangeData reports a connection state transition.
type StateChangeData struct {
	State string `json:"state"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewReadingMessage(sessionID string, reading s7.Reading, unit string, outOfRange bool) Message {
	return NewMessage(MessageTypeReading, ReadingData{
		SessionID:  sessionID,
		Value:      reading.Value,
		Unit:       unit,
		OutOfRange: outOfRange,
		CapturedAt: reading.Timestamp,
	})
}

func NewReadErrorMessage(sessionID string, err error) Message {
	return NewMessage(MessageTypeReadError, ReadErrorData{
		SessionID: sessionID,
		Error:     err.Error(),
	})
}

func NewStateChangeMessage(state s7.ConnectionState) Message {
	return NewMessage(MessageTypeStateChange, StateChangeData{
		State: state.String(),
	})
}

func NewMonitorStatsMessage(stats monitor.Stats) Message {
	return NewMessage(MessageTypeMonitorStats, stats)
}
