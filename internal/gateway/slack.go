package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Persona defines how the bot appears when posting.
type Persona struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
	Emoji   string `json:"emoji"` // fallback if no icon_url, e.g. ":heart:"
}

// SlackAdapter posts broadcasts into a single Slack channel.
type SlackAdapter struct {
	channelID   string
	client      *slack.Client
	persona     *Persona
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewSlackAdapter creates a Slack gateway adapter.
// botToken is the Bot User OAuth Token (xoxb-...).
func NewSlackAdapter(botToken, channelID string, logger *zap.Logger) *SlackAdapter {
	return &SlackAdapter{
		channelID: channelID,
		client:    slack.New(botToken),
		logger:    logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

// SetPersona sets the display name and icon used for posts.
func (a *SlackAdapter) SetPersona(p *Persona) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.persona = p
}

// Connect verifies the bot token.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	resp, err := a.client.AuthTestContext(ctx)
	if err != nil {
		a.mu.Lock()
		a.lastError = fmt.Sprintf("auth test: %v", err)
		a.mu.Unlock()
		return fmt.Errorf("slack auth: %w", err)
	}

	a.mu.Lock()
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.mu.Unlock()

	a.logger.Info("slack adapter connected",
		zap.String("team", resp.Team),
		zap.String("user", resp.User),
		zap.String("channel", a.channelID))
	return nil
}

// Broadcast posts the message to the configured channel.
func (a *SlackAdapter) Broadcast(ctx context.Context, msg *BroadcastMessage) error {
	text := fmt.Sprintf("*[%s] %s*\n%s", msg.Type, msg.Title, msg.Content)

	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
	}
	opts = append(opts, a.personaOpts()...)

	if _, _, err := a.client.PostMessageContext(ctx, a.channelID, opts...); err != nil {
		a.logger.Error("slack send failed",
			zap.String("channel", a.channelID), zap.Error(err))
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

// personaOpts builds Slack message options for persona display.
func (a *SlackAdapter) personaOpts() []slack.MsgOption {
	a.mu.RLock()
	p := a.persona
	a.mu.RUnlock()
	if p == nil {
		return nil
	}

	opts := []slack.MsgOption{
		slack.MsgOptionUsername(p.Name),
	}
	if p.IconURL != "" {
		opts = append(opts, slack.MsgOptionIconURL(p.IconURL))
	} else if p.Emoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(p.Emoji))
	}
	return opts
}

// Close is a no-op; the Web API client holds no open connection.
func (a *SlackAdapter) Close() error {
	return nil
}

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "slack",
		Connected: a.connected,
		Error:     a.lastError,
		Details:   "channel=" + a.channelID,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
	}
	return s
}
