package gateway

import (
	"context"

	"go.uber.org/zap"
)

// LogAdapter writes broadcasts to the service log. It is always registered
// so reminders are visible even without a chat platform configured.
type LogAdapter struct {
	logger *zap.Logger
}

// NewLogAdapter creates a log-only adapter.
func NewLogAdapter(logger *zap.Logger) *LogAdapter {
	return &LogAdapter{logger: logger}
}

func (a *LogAdapter) Platform() string { return "log" }

func (a *LogAdapter) Connect(_ context.Context) error { return nil }

func (a *LogAdapter) Close() error { return nil }

func (a *LogAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	a.logger.Info("broadcast",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title),
		zap.String("content", msg.Content))
	return nil
}
