package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedisStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryRedisStore() *memoryRedisStore {
	return &memoryRedisStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedisStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryRedisStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedisStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLockIsExclusiveUntilReleased(t *testing.T) {
	store := newMemoryRedisStore()
	first, err := NewRedisLock(store, "pf:lock:test:cron", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "pf:lock:test:cron", 0)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire to win, ok=%v err=%v", ok, err)
	}
	if store.ttls["pf:lock:test:cron"] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls["pf:lock:test:cron"])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("expected second acquire to lose")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non owner: %v", err)
	}
	if _, ok := store.values["pf:lock:test:cron"]; !ok {
		t.Fatal("non owner must not delete the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected lock to be free after release")
	}
}

func TestRedisLockLeavesForeignOwnerAlone(t *testing.T) {
	store := newMemoryRedisStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	store.values["k"] = "another-replica/123"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["k"] != "another-replica/123" {
		t.Fatal("expected foreign lock to survive")
	}
}

func TestRedisLockReleaseSurfacesStoreErrors(t *testing.T) {
	store := newMemoryRedisStore()
	lock, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	store.getErr = errors.New("connection reset")
	if err := lock.Release(ctx); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := NewRedisLock(newMemoryRedisStore(), "", 0); err == nil {
		t.Fatal("expected empty key error")
	}
}
