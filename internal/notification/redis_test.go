package notification

import (
	"context"
	"encoding/json"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisNotifierEnqueuesEvent(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	n := NewRedisNotifier(client)
	event := Event{
		TransactionID:    "tx-1",
		Kind:             "transfer",
		Amount:           3_000,
		SourceOwner:      "user:alice",
		DestinationOwner: "user:bob",
	}

	if err := n.Send(context.Background(), event); err != nil {
		t.Fatalf("send: %v", err)
	}

	raw, err := mr.Lpop(EventQueue)
	if err != nil {
		t.Fatalf("pop queue: %v", err)
	}

	var got Event
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if got != event {
		t.Fatalf("expected %+v, got %+v", event, got)
	}
}
