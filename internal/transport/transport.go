package transport

import "voiced/pkg/types"

// MsgType discriminates wire messages on the satellite channel.
type MsgType string

const (
	MsgRequest      MsgType = "request"
	MsgEvent        MsgType = "event"
	MsgNewDevice    MsgType = "new_device"
	MsgDisconnected MsgType = "disconnected"
	MsgAnswer       MsgType = "answer"
)

// Message is one JSON frame on the satellite channel. Audio payloads
// ride base64-encoded through encoding/json's []byte handling.
type Message struct {
	Type     MsgType `json:"type"`
	DeviceID string  `json:"device_id"`
	// Text request payload.
	Text string `json:"text,omitempty"`
	// Optional locale hint for text requests.
	Lang string `json:"lang,omitempty"`
	// Audio request payload.
	Audio   []byte `json:"audio,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
	// Event name (MsgEvent).
	Name string `json:"name,omitempty"`
	// Declared capabilities (MsgNewDevice).
	Capabilities []string `json:"capabilities,omitempty"`
	// Answer payload (MsgAnswer, server to satellite).
	Answer *types.Answer `json:"answer,omitempty"`
}

// Handler is the inbound side the server dispatches into. One goroutine
// per connection calls these in arrival order, which is the per-device
// ordering guarantee the pipeline relies on.
type Handler interface {
	HandleText(deviceID, text string, lang types.LanguageTag)
	HandleAudio(deviceID string, audio []byte, isFinal bool)
	HandleEvent(deviceID, name string)
	NewDevice(deviceID string, capabilities []string)
	Disconnected(deviceID string)
}
