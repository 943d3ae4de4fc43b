package eventbus

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func TestFIFOPerProducer(t *testing.T) {
	b := New()
	for i := 0; i < 5; i++ {
		if err := b.Send(Event{Kind: KindCommand, Payload: i}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		e, err := b.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if e.Payload.(int) != i {
			t.Fatalf("expected %d, got %v", i, e.Payload)
		}
	}
}

func TestNextBlocksUntilSend(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan Event, 1)
	go func() {
		e, err := b.Next(ctx)
		if err != nil {
			t.Error(err)
			return
		}
		done <- e
	}()

	time.Sleep(20 * time.Millisecond)
	if err := b.Send(Event{Kind: KindTriggerShutdown}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case e := <-done:
		if e.Kind != KindTriggerShutdown {
			t.Fatalf("unexpected kind %v", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestCloseDrainsThenErrors(t *testing.T) {
	b := New()
	_ = b.Send(Event{Kind: KindCommand, Payload: 1})
	b.Close()

	ctx := context.Background()
	if _, err := b.Next(ctx); err != nil {
		t.Fatalf("expected queued event before close error, got %v", err)
	}
	if _, err := b.Next(ctx); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := b.Send(Event{Kind: KindCommand}); err != ErrClosed {
		t.Fatalf("expected ErrClosed on send, got %v", err)
	}
}

func TestWeakSenderSurvivesWhileBusReachable(t *testing.T) {
	b := New()
	ws := b.WeakSender()

	if err := ws.Send(Event{Kind: KindCommand, Payload: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	e, err := b.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if e.Payload.(string) != "hi" {
		t.Fatalf("unexpected payload %v", e.Payload)
	}
	runtime.KeepAlive(b)
}
