package models

import "encoding/json"

// Message types sent to live-view and bus subscribers.
const (
	MessageFrame          = "frame"
	MessageStats          = "stats"
	MessageCaptureStopped = "capture_stopped"
	MessageError          = "error"
)

// WSMessage is the envelope for all WebSocket communication.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FrameMessage carries one decoded frame.
type FrameMessage struct {
	Number        int    `json:"number"`
	Timestamp     string `json:"timestamp"`
	CaptureLength int    `json:"captureLength"`
	Length        int    `json:"length"`
	LinkType      string `json:"linkType"`
	Tree          *Field `json:"tree"`
	Error         string `json:"error,omitempty"`
}

// ErrorPayload describes an error sent to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}
