package gateway

import (
	"context"
	"time"
)

// Adapter delivers broadcast messages to one outbound platform.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Broadcast(ctx context.Context, msg *BroadcastMessage) error
	Close() error
}

// BroadcastType categorizes broadcast messages.
type BroadcastType string

const BroadcastReminder BroadcastType = "reminder"

// BroadcastMessage is sent to every registered platform, or to the subset
// named in Platforms.
type BroadcastMessage struct {
	Type      BroadcastType `json:"type"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Platforms []string      `json:"platforms,omitempty"`
}

// AdapterStatus reports the connection state of an adapter.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Details     string     `json:"details,omitempty"`
}
