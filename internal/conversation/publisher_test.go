package conversation

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEnqueueInboundRoundTrip(t *testing.T) {
	queue := NewMemoryQueue(4)
	pub := NewPublisher(queue, nil)

	req := InboundRequest{
		ShopID:             "shop-1",
		Channel:            "whatsapp",
		ExternalCustomerID: "201234567890",
		CustomerName:       "Sara",
		Text:               "I want 2 units of Widget",
		ProviderMessageID:  "wamid.9",
	}
	jobID, err := pub.EnqueueInbound(context.Background(), req)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if jobID == "" {
		t.Fatal("job id must be assigned")
	}

	msgs, err := queue.Receive(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}

	var payload queuePayload
	if err := json.Unmarshal([]byte(msgs[0].Body), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != jobID {
		t.Errorf("payload id = %s, want %s", payload.ID, jobID)
	}
	if payload.Kind != jobTypeInbound {
		t.Errorf("kind = %s", payload.Kind)
	}
	if !payload.TrackStatus {
		t.Error("tracking should default on")
	}
	if payload.Inbound.Text != req.Text || payload.Inbound.ShopID != req.ShopID {
		t.Errorf("inbound = %#v", payload.Inbound)
	}
}

func TestEnqueueInboundWithoutTracking(t *testing.T) {
	queue := NewMemoryQueue(4)
	pub := NewPublisher(queue, nil)

	if _, err := pub.EnqueueInbound(context.Background(), InboundRequest{ShopID: "s"}, WithoutJobTracking()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	msgs, err := queue.Receive(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var payload queuePayload
	if err := json.Unmarshal([]byte(msgs[0].Body), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TrackStatus {
		t.Error("tracking should be off")
	}
}

func TestMemoryQueueBatchesAvailableMessages(t *testing.T) {
	queue := NewMemoryQueue(8)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := queue.Send(ctx, "body"); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	msgs, err := queue.Receive(ctx, 2, 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("batch = %d, want capped at 2", len(msgs))
	}

	msgs, err = queue.Receive(ctx, 5, 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("remaining = %d, want 1", len(msgs))
	}
}

func TestMemoryQueueReceiveWaitExpires(t *testing.T) {
	queue := NewMemoryQueue(1)

	start := time.Now()
	msgs, err := queue.Receive(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msgs != nil {
		t.Fatalf("messages = %#v, want none", msgs)
	}
	if time.Since(start) < 900*time.Millisecond {
		t.Fatal("receive returned before the wait window elapsed")
	}
}

func TestMemoryQueueReceiveCancelled(t *testing.T) {
	queue := NewMemoryQueue(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := queue.Receive(ctx, 1, 10); err == nil {
		t.Fatal("expected context error")
	}
}
