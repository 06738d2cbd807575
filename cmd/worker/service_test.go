package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
)

type stubPinger struct {
	err   error
	calls int
}

func (s *stubPinger) Ping(context.Context) error {
	s.calls++
	return s.err
}

type stubConsumer struct {
	err     error
	started chan struct{}
}

func (s *stubConsumer) Run(ctx context.Context) error {
	if s.started != nil {
		close(s.started)
	}
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func newWorkerService(t *testing.T, redis *stubPinger, consumer *stubConsumer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:       &stubPinger{},
		Redis:    redis,
		PubSub:   &stubPinger{},
		Consumer: consumer,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestWorkerRefusesToStartWhenDependencyIsDown(t *testing.T) {
	consumer := &stubConsumer{started: make(chan struct{})}
	svc := newWorkerService(t, &stubPinger{err: errors.New("redis down")}, consumer)

	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected readiness error")
	}
	select {
	case <-consumer.started:
		t.Fatal("consumer must not start")
	default:
	}
}

func TestWorkerSurfacesConsumerFailure(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc := newWorkerService(t, &stubPinger{}, &stubConsumer{err: boom})

	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestWorkerStopsOnCancel(t *testing.T) {
	consumer := &stubConsumer{started: make(chan struct{})}
	svc := newWorkerService(t, &stubPinger{}, consumer)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	<-consumer.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:     &stubPinger{},
		Redis:  &stubPinger{},
		PubSub: &stubPinger{},
	})
	if err == nil {
		t.Fatal("expected missing consumer error")
	}
}
