package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeAdapter struct {
	platform   string
	connectErr error
	sendErr    error
	mu         sync.Mutex
	sent       []*BroadcastMessage
	closed     bool
}

func (a *fakeAdapter) Platform() string                { return a.platform }
func (a *fakeAdapter) Connect(_ context.Context) error { return a.connectErr }
func (a *fakeAdapter) Close() error                    { a.closed = true; return nil }

func (a *fakeAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return a.sendErr
	}
	a.sent = append(a.sent, msg)
	return nil
}

func TestBroadcastFanOut(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	a := &fakeAdapter{platform: "a"}
	b := &fakeAdapter{platform: "b"}
	gw.Register(a)
	gw.Register(b)

	msg := &BroadcastMessage{Type: BroadcastReminder, Title: "t", Content: "c"}
	if err := gw.Broadcast(context.Background(), msg); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("expected one message per adapter, got a=%d b=%d", len(a.sent), len(b.sent))
	}

	targeted := &BroadcastMessage{Type: BroadcastReminder, Platforms: []string{"b"}}
	if err := gw.Broadcast(context.Background(), targeted); err != nil {
		t.Fatalf("targeted broadcast: %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 2 {
		t.Errorf("targeted broadcast reached wrong adapters: a=%d b=%d", len(a.sent), len(b.sent))
	}
}

func TestBroadcastErrors(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	ctx := context.Background()

	if err := gw.Broadcast(ctx, &BroadcastMessage{Type: BroadcastReminder}); err == nil {
		t.Error("expected error with no adapters")
	}

	gw.Register(&fakeAdapter{platform: "ok"})
	if err := gw.Broadcast(ctx, &BroadcastMessage{}); err == nil {
		t.Error("expected error for missing type")
	}

	sendErr := errors.New("rate limited")
	gw.Register(&fakeAdapter{platform: "bad", sendErr: sendErr})
	err := gw.Broadcast(ctx, &BroadcastMessage{Type: BroadcastReminder})
	if !errors.Is(err, sendErr) {
		t.Errorf("expected wrapped send error, got %v", err)
	}
}

func TestConnectAllDropsFailedAdapters(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	gw.Register(&fakeAdapter{platform: "good"})
	gw.Register(&fakeAdapter{platform: "broken", connectErr: errors.New("bad token")})
	gw.Register(NewLogAdapter(zap.NewNop()))

	if err := gw.ConnectAll(context.Background()); err == nil {
		t.Error("expected connect error")
	}
	got := gw.Adapters()
	if len(got) != 2 || got[0] != "good" || got[1] != "log" {
		t.Errorf("got adapters %v, want [good log]", got)
	}

	statuses := gw.StatusAll()
	if len(statuses) != 2 || !statuses[0].Connected {
		t.Errorf("unexpected statuses: %+v", statuses)
	}
}
