package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type mapStore map[string]any

func (s mapStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", redis.Nil
	}
	return fmt.Sprint(v), nil
}

func (s mapStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s[key]; ok {
		return false, nil
	}
	s[key] = value
	return true, nil
}

func (s mapStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s[key] = value
	return nil
}

func (s mapStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s, key)
	}
	return nil
}

func (s mapStore) IdempotencyKey(scope, id string) string {
	return "pf:idempotency:" + scope + ":" + id
}

// creditOnce claims the event, posts the credit and releases the claim when
// posting fails so the redelivery can retry.
func creditOnce(ctx context.Context, manager *Manager, eventID string, post func() error) string {
	already, err := manager.CheckAndMarkProcessed(ctx, "wallet-orders", eventID)
	if err != nil {
		return "nack"
	}
	if already {
		return "duplicate"
	}
	if err := post(); err != nil {
		_ = manager.Delete(ctx, "wallet-orders", eventID)
		return "retry"
	}
	return "credited"
}

func ExampleManager_CheckAndMarkProcessed() {
	ctx := context.Background()
	manager, _ := NewManager(mapStore{}, 7*24*time.Hour)
	eventID := "3f6c2a5e-0b1d-4c55-9a11-7d2f0c9e8b10"

	fmt.Println(creditOnce(ctx, manager, eventID, func() error { return errors.New("db busy") }))
	fmt.Println(creditOnce(ctx, manager, eventID, func() error { return nil }))
	fmt.Println(creditOnce(ctx, manager, eventID, func() error { return nil }))
	// Output:
	// retry
	// credited
	// duplicate
}
