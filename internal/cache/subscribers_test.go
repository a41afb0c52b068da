package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSubscriberStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewSubscriberStore(client)
	ctx := context.Background()

	if err := store.SaveSubscriber(ctx, 10, "buy"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveSubscriber(ctx, -20, "all"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveSubscriber(ctx, 10, "sell"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	mr.HSet(subscribersKey, "not-a-chat", "all")

	got, err := store.LoadSubscribers(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[10] != "sell" || got[-20] != "all" {
		t.Fatalf("unexpected subscribers: %+v", got)
	}

	if err := store.DeleteSubscriber(ctx, 10); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = store.LoadSubscribers(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := got[10]; ok || len(got) != 1 {
		t.Fatalf("expected chat 10 removed, got %+v", got)
	}
}

func TestSubscriberStoreReportsRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	if _, err := NewSubscriberStore(client).LoadSubscribers(context.Background()); err == nil {
		t.Fatal("expected error from a closed server")
	}
}
