package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(&InboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if msg.Content != "hi" || msg.ChatID != "42" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("timestamp should be stamped on publish")
	}
}

func TestConsumeInboundCancelled(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ConsumeInbound(ctx); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestDispatchOutboundRoutesToSubscriber(t *testing.T) {
	b := NewMessageBus()
	got := make(chan *OutboundMessage, 1)
	b.Subscribe("slack", func(msg *OutboundMessage) { got <- msg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{Channel: "slack", ChatID: "C1", Content: "done"})

	select {
	case msg := <-got:
		if msg.Content != "done" {
			t.Fatalf("unexpected content: %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound message not dispatched")
	}
}

func TestDispatchIgnoresOtherChannels(t *testing.T) {
	b := NewMessageBus()
	got := make(chan *OutboundMessage, 1)
	b.Subscribe("telegram", func(msg *OutboundMessage) { got <- msg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{Channel: "slack", Content: "nope"})

	select {
	case <-got:
		t.Fatal("telegram subscriber should not receive slack messages")
	case <-time.After(100 * time.Millisecond):
	}
}
