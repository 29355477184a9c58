// Package notify delivers scheduled notifications once their event date
// has passed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nidhogg/lovebook/internal/content"
	"github.com/nidhogg/lovebook/internal/gateway"
	"go.uber.org/zap"
)

const (
	defaultBatch       = 50
	defaultMaxAttempts = 5
	defaultRetryDelay  = time.Minute
	maxRetryDelay      = time.Hour
)

// Source yields deliveries that are due. Deliveries returned by Due are
// owned by the caller, even when Due also returns an error.
type Source interface {
	Due(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)
	Requeue(ctx context.Context, d *Delivery, at time.Time) error
}

// Sender delivers a broadcast message.
type Sender interface {
	Broadcast(ctx context.Context, msg *gateway.BroadcastMessage) error
}

// Dispatcher polls a Source on a fixed interval and sends due notifications.
type Dispatcher struct {
	source      Source
	sender      Sender
	interval    time.Duration
	batch       int
	maxAttempts int
	retryDelay  time.Duration // first backoff, doubled per failed attempt
	now         func() time.Time
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *zap.Logger
}

// NewDispatcher creates a dispatcher that polls every interval.
func NewDispatcher(source Source, sender Sender, interval time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		source:      source,
		sender:      sender,
		interval:    interval,
		batch:       defaultBatch,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		now:         time.Now,
		logger:      logger,
	}
}

// Start begins the polling loop in a background goroutine.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go d.loop(ctx)
	d.logger.Info("notification dispatcher started", zap.Duration("interval", d.interval))
}

// Stop halts the polling loop and waits for an in-flight poll to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.wg.Wait()
		d.logger.Info("notification dispatcher stopped")
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("notification poll failed", zap.Error(err))
			}
		}
	}
}

// RunOnce delivers every currently due notification and returns how many
// were sent. A failed send is retried later with exponential backoff and
// dropped after maxAttempts failures.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	sent := 0
	for {
		due, dueErr := d.source.Due(ctx, d.now(), d.batch)
		for i, item := range due {
			n := item.Notification
			if err := d.sender.Broadcast(ctx, reminder(n)); err != nil {
				d.retry(ctx, item, err)
				for _, rest := range due[i+1:] {
					d.requeue(ctx, rest, d.scheduledAt(rest))
				}
				return sent, errors.Join(fmt.Errorf("deliver notification %s: %w", n.ID, err), dueErr)
			}
			sent++
			d.logger.Info("notification delivered", zap.String("id", n.ID))
		}
		if dueErr != nil {
			return sent, dueErr
		}
		if len(due) < d.batch {
			return sent, nil
		}
	}
}

// retry puts a failed delivery back with backoff. A send interrupted by
// cancellation does not count as an attempt.
func (d *Dispatcher) retry(ctx context.Context, item *Delivery, cause error) {
	if ctx.Err() != nil {
		d.requeue(ctx, item, d.scheduledAt(item))
		return
	}
	item.Attempts++
	if item.Attempts >= d.maxAttempts {
		d.logger.Error("notification dropped after repeated delivery failures",
			zap.String("id", item.Notification.ID),
			zap.Int("attempts", item.Attempts),
			zap.Error(cause))
		return
	}
	d.requeue(ctx, item, d.now().Add(d.backoff(item.Attempts)))
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.retryDelay
	for i := 1; i < attempts && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

// requeue ignores cancellation of ctx: the item is already off the queue.
func (d *Dispatcher) requeue(ctx context.Context, item *Delivery, at time.Time) {
	if err := d.source.Requeue(context.WithoutCancel(ctx), item, at); err != nil {
		d.logger.Error("notification lost on requeue",
			zap.String("id", item.Notification.ID), zap.Error(err))
	}
}

func (d *Dispatcher) scheduledAt(item *Delivery) time.Time {
	if item.Notification.EventDate != nil && item.Attempts == 0 {
		return *item.Notification.EventDate
	}
	return d.now()
}

func reminder(n *content.Notification) *gateway.BroadcastMessage {
	title := "Reminder"
	if n.EventDate != nil {
		title = "Reminder for " + n.EventDate.UTC().Format(time.DateOnly)
	}
	return &gateway.BroadcastMessage{
		Type:    gateway.BroadcastReminder,
		Title:   title,
		Content: n.Message,
	}
}
