package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-wallet/pkg/errors"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox"
)

type stubLedger struct {
	credits []CreditOnDeliveryInput
	debits  []DebitInput
	vendors map[uuid.UUID]string
	err     error
}

func (s *stubLedger) CreditOnDelivery(_ context.Context, input CreditOnDeliveryInput) (*AppendResult, error) {
	s.credits = append(s.credits, input)
	if s.err != nil {
		return nil, s.err
	}
	return &AppendResult{Transaction: models.WalletTransaction{ID: uuid.New(), VendorID: input.VendorID, Type: enums.WalletTxnDeliveredHoldCredit}, Created: true}, nil
}

func (s *stubLedger) DebitOnCancelOrReturn(_ context.Context, input DebitInput) (*AppendResult, error) {
	s.debits = append(s.debits, input)
	if s.err != nil {
		return nil, s.err
	}
	return &AppendResult{Transaction: models.WalletTransaction{ID: uuid.New(), VendorID: input.VendorID, Type: input.Type}, Created: true}, nil
}

func (s *stubLedger) UpsertVendor(_ context.Context, vendorID uuid.UUID, name string) error {
	if s.vendors == nil {
		s.vendors = map[uuid.UUID]string{}
	}
	s.vendors[vendorID] = name
	return s.err
}

type stubMarker struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func (m *stubMarker) CheckAndMarkProcessed(_ context.Context, _ string, eventID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[eventID] {
		return true, nil
	}
	m.seen[eventID] = true
	return false, nil
}

func (m *stubMarker) Delete(_ context.Context, _ string, eventID string) error {
	m.deleted = append(m.deleted, eventID)
	delete(m.seen, eventID)
	return nil
}

func newTestConsumer(t *testing.T, ledger *stubLedger, marker *stubMarker) *Consumer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	consumer, err := NewConsumer(ledger, &pubsub.Subscriber{}, marker, logg)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func buildOrderMessage(t *testing.T, eventType, eventID string, payload any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         "msg-" + eventID,
		Data:       envelope,
		Attributes: map[string]string{"event_type": eventType},
	}
}

func TestConsumerCreditsDeliveredOrders(t *testing.T) {
	t.Parallel()

	ledger := &stubLedger{}
	marker := &stubMarker{}
	consumer := newTestConsumer(t, ledger, marker)
	vendorID := uuid.New()
	delivered := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	msg := buildOrderMessage(t, EventOrderDelivered, "evt-1", orderDeliveredPayload{
		VendorID:    vendorID,
		OrderCode:   "ORD1",
		SubOrderID:  "ORD1-A",
		AmountPaise: 125000,
		DeliveredAt: &delivered,
	})
	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(ledger.credits) != 1 {
		t.Fatalf("expected one credit, got %d", len(ledger.credits))
	}
	got := ledger.credits[0]
	if got.IdempotencyKey != "order_delivered:ORD1-A" {
		t.Fatalf("unexpected idempotency key %q", got.IdempotencyKey)
	}
	if got.VendorID != vendorID || got.AmountPaise != 125000 || got.SourceEventID != "evt-1" {
		t.Fatalf("unexpected credit input %+v", got)
	}
	if got.DeliveredAt == nil || !got.DeliveredAt.Equal(delivered) {
		t.Fatalf("expected delivered time to pass through, got %v", got.DeliveredAt)
	}

	again := consumer.process(context.Background(), msg)
	if !again.ack {
		t.Fatalf("expected redelivery to be acked")
	}
	if len(ledger.credits) != 1 {
		t.Fatalf("expected redelivery to be skipped, got %d credits", len(ledger.credits))
	}
}

func TestConsumerMapsDeductions(t *testing.T) {
	t.Parallel()

	ledger := &stubLedger{}
	consumer := newTestConsumer(t, ledger, &stubMarker{})
	vendorID := uuid.New()

	consumer.process(context.Background(), buildOrderMessage(t, EventOrderCanceled, "evt-2", orderDeductionPayload{
		VendorID: vendorID, OrderCode: "ORD2", SubOrderID: "ORD2-B", AmountPaise: 5000, Reason: "buyer canceled",
	}))
	consumer.process(context.Background(), buildOrderMessage(t, EventReturnApproved, "evt-3", orderDeductionPayload{
		VendorID: vendorID, OrderCode: "ORD3", SubOrderID: "ORD3-A", ReturnID: "RET-9", AmountPaise: 700,
	}))

	if len(ledger.debits) != 2 {
		t.Fatalf("expected two debits, got %d", len(ledger.debits))
	}
	cancel, ret := ledger.debits[0], ledger.debits[1]
	if cancel.Type != enums.WalletTxnCancelDeduct || cancel.IdempotencyKey != "order_canceled:ORD2-B" {
		t.Fatalf("unexpected cancel input %+v", cancel)
	}
	if cancel.Note == nil || *cancel.Note != "buyer canceled" {
		t.Fatalf("expected cancel reason as note")
	}
	if ret.Type != enums.WalletTxnReturnDeduct || ret.IdempotencyKey != "return_approved:RET-9" {
		t.Fatalf("unexpected return input %+v", ret)
	}
	if ret.Note != nil {
		t.Fatalf("expected no note without a reason")
	}
}

func TestConsumerUpsertsRegisteredVendors(t *testing.T) {
	t.Parallel()

	ledger := &stubLedger{}
	consumer := newTestConsumer(t, ledger, &stubMarker{})
	vendorID := uuid.New()

	result := consumer.process(context.Background(), buildOrderMessage(t, EventVendorRegistered, "evt-4", vendorRegisteredPayload{
		VendorID: vendorID, Name: "Acme Traders",
	}))
	if !result.ack {
		t.Fatalf("expected ack")
	}
	if ledger.vendors[vendorID] != "Acme Traders" {
		t.Fatalf("expected vendor upserted, got %v", ledger.vendors)
	}
}

func TestConsumerAcksBusinessRejections(t *testing.T) {
	t.Parallel()

	ledger := &stubLedger{err: insufficientBalance(enums.WalletStatusAvailable, 0, 100)}
	marker := &stubMarker{}
	consumer := newTestConsumer(t, ledger, marker)

	result := consumer.process(context.Background(), buildOrderMessage(t, EventOrderCanceled, "evt-5", orderDeductionPayload{
		VendorID: uuid.New(), SubOrderID: "SO-1", AmountPaise: 100,
	}))
	if !result.ack || result.nack {
		t.Fatalf("expected business rejection to be acked, got %+v", result)
	}
	if len(marker.deleted) != 0 {
		t.Fatalf("expected processed marker to be kept")
	}
}

func TestConsumerNacksTransientFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"dependency":       pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "append"),
		"vendor not found": vendorNotFound(uuid.New()),
		"untyped":          errors.New("boom"),
	}
	for name, failure := range cases {
		failure := failure
		t.Run(name, func(t *testing.T) {
			ledger := &stubLedger{err: failure}
			marker := &stubMarker{}
			consumer := newTestConsumer(t, ledger, marker)

			result := consumer.process(context.Background(), buildOrderMessage(t, EventOrderDelivered, "evt-6", orderDeliveredPayload{
				VendorID: uuid.New(), SubOrderID: "SO-1", AmountPaise: 100,
			}))
			if !result.nack {
				t.Fatalf("expected nack, got %+v", result)
			}
			if len(marker.deleted) != 1 || marker.deleted[0] != "evt-6" {
				t.Fatalf("expected processed marker cleared, got %v", marker.deleted)
			}
		})
	}
}

func TestConsumerSkipsUnrelatedAndMalformedEvents(t *testing.T) {
	t.Parallel()

	ledger := &stubLedger{}
	consumer := newTestConsumer(t, ledger, &stubMarker{})

	unrelated := consumer.process(context.Background(), &pubsub.Message{
		Data:       []byte(`{}`),
		Attributes: map[string]string{"event_type": "order_shipped"},
	})
	if !unrelated.ack {
		t.Fatalf("expected unrelated event to be acked")
	}
	malformed := consumer.process(context.Background(), &pubsub.Message{
		Data:       []byte("not json"),
		Attributes: map[string]string{"event_type": EventOrderDelivered},
	})
	if !malformed.ack {
		t.Fatalf("expected malformed envelope to be acked")
	}
	if len(ledger.credits) != 0 {
		t.Fatalf("expected no ledger calls")
	}
}

func TestConsumerNacksWhenIdempotencyStoreFails(t *testing.T) {
	t.Parallel()

	consumer := newTestConsumer(t, &stubLedger{}, &stubMarker{err: errors.New("redis down")})
	result := consumer.process(context.Background(), buildOrderMessage(t, EventOrderDelivered, "evt-7", orderDeliveredPayload{
		VendorID: uuid.New(), SubOrderID: "SO-1", AmountPaise: 100,
	}))
	if !result.nack {
		t.Fatalf("expected nack when idempotency store fails")
	}
}
