package ws

import (
	"time"

	"github.com/HerbHall/capa/pkg/anomaly"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageDetectStep         MessageType = "detect.step"
	MessageDetectCompleted    MessageType = "detect.completed"
	MessageDetectError        MessageType = "detect.error"
	MessageDetectionCompleted MessageType = "detection.completed"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	RunID     string      `json:"run_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// StepData is the payload of detect.step messages.
type StepData = anomaly.Step

// CompletedData is the payload of detect.completed messages. Steps are not
// repeated; they were already streamed.
type CompletedData = anomaly.DetectResponse

// ErrorData is the payload of detect.error messages.
type ErrorData struct {
	Error  string `json:"error"`
	Status int    `json:"status"` // HTTP status the same failure maps to
}

// FeedData is the payload of detection.completed feed messages.
type FeedData = anomaly.DetectionSummary
