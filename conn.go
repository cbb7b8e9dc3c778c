package reflex

import (
	"context"
	"encoding/json"
	"net/http"
)

// Notification subjects sent to clients.
const (
	SubjectHalted     = "halted"
	SubjectError      = "error"
	SubjectConsoleLog = "console_log"
)

// Conn is the client connection a dispatch runs on. Transports implement it.
type Conn interface {
	// StreamName identifies the connection's broadcast stream.
	StreamName() string

	// Request returns the HTTP request that opened the connection, or nil.
	Request() *http.Request

	// Broadcast pushes the result of a successful call to the client.
	Broadcast(ctx context.Context, selectors []string, data json.RawMessage) error

	// Notify pushes a notification to the client.
	Notify(ctx context.Context, n Notification) error
}

// Notification is a message to the client that is not a broadcast.
type Notification struct {
	Subject  string          `json:"type"`
	Body     string          `json:"body,omitempty"`
	Level    string          `json:"level,omitempty"`
	ReflexID string          `json:"reflexId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Morph is the wire form of a broadcast.
type Morph struct {
	Type      string          `json:"type"`
	Selectors []string        `json:"selectors"`
	Data      json.RawMessage `json:"data"`
}

// NewMorph returns the broadcast envelope for selectors and data.
func NewMorph(selectors []string, data json.RawMessage) Morph {
	return Morph{Type: "morph", Selectors: selectors, Data: data}
}

// StreamName joins a channel name and a connection identifier.
func StreamName(channel, identifier string) string {
	return channel + ":" + identifier
}
