package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const subscribersKey = "alerts:subscribers"

// SubscriberStore persists Telegram alert subscriptions as a hash of chat
// ID to alert side.
type SubscriberStore struct {
	client *redis.Client
}

func NewSubscriberStore(client *redis.Client) *SubscriberStore {
	return &SubscriberStore{client: client}
}

func (s *SubscriberStore) LoadSubscribers(ctx context.Context) (map[int64]string, error) {
	raw, err := s.client.HGetAll(ctx, subscribersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	out := make(map[int64]string, len(raw))
	for field, side := range raw {
		chatID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		out[chatID] = side
	}
	return out, nil
}

func (s *SubscriberStore) SaveSubscriber(ctx context.Context, chatID int64, side string) error {
	if err := s.client.HSet(ctx, subscribersKey, strconv.FormatInt(chatID, 10), side).Err(); err != nil {
		return fmt.Errorf("save subscriber %d: %w", chatID, err)
	}
	return nil
}

func (s *SubscriberStore) DeleteSubscriber(ctx context.Context, chatID int64) error {
	if err := s.client.HDel(ctx, subscribersKey, strconv.FormatInt(chatID, 10)).Err(); err != nil {
		return fmt.Errorf("delete subscriber %d: %w", chatID, err)
	}
	return nil
}
