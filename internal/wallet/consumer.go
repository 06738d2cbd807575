package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-wallet/pkg/errors"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox"
)

const orderEventsConsumer = "wallet-orders"

// Order subsystem event types carried in the event_type attribute.
const (
	EventOrderDelivered   = "order_delivered"
	EventOrderCanceled    = "order_canceled"
	EventReturnApproved   = "return_approved"
	EventVendorRegistered = "vendor_registered"
)

type orderLedger interface {
	CreditOnDelivery(ctx context.Context, input CreditOnDeliveryInput) (*AppendResult, error)
	DebitOnCancelOrReturn(ctx context.Context, input DebitInput) (*AppendResult, error)
	UpsertVendor(ctx context.Context, vendorID uuid.UUID, name string) error
}

type processedMarker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID string) (bool, error)
	Delete(ctx context.Context, consumer string, eventID string) error
}

// Consumer turns order lifecycle events into ledger appends.
type Consumer struct {
	ledger       orderLedger
	subscription *pubsub.Subscriber
	idempotency  processedMarker
	logg         *logger.Logger
}

// NewConsumer builds the order event consumer.
func NewConsumer(ledger orderLedger, subscription *pubsub.Subscriber, manager processedMarker, logg *logger.Logger) (*Consumer, error) {
	if ledger == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		ledger:       ledger,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

type orderDeliveredPayload struct {
	VendorID    uuid.UUID  `json:"vendorId"`
	OrderCode   string     `json:"orderCode"`
	SubOrderID  string     `json:"subOrderId"`
	AmountPaise int64      `json:"amountPaise"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	MaturesAt   *time.Time `json:"maturesAt,omitempty"`
}

type orderDeductionPayload struct {
	VendorID    uuid.UUID `json:"vendorId"`
	OrderCode   string    `json:"orderCode"`
	SubOrderID  string    `json:"subOrderId"`
	ReturnID    string    `json:"returnId,omitempty"`
	AmountPaise int64     `json:"amountPaise"`
	Reason      string    `json:"reason,omitempty"`
}

type vendorRegisteredPayload struct {
	VendorID uuid.UUID `json:"vendorId"`
	Name     string    `json:"name"`
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	switch eventType {
	case EventOrderDelivered, EventOrderCanceled, EventReturnApproved, EventVendorRegistered:
	default:
		c.logg.Debug(logCtx, "skipping unrelated event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID := envelope.EventID
	logCtx = c.logg.WithField(logCtx, "event_id", eventID)

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderEventsConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	err = c.handle(ctx, logCtx, eventType, eventID, envelope.Data)
	if err == nil {
		return processResult{ack: true}
	}
	if !isTransient(err) {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "order event rejected")
		return processResult{ack: true}
	}
	c.logg.Error(logCtx, "order event handling failed", err)
	if delErr := c.idempotency.Delete(ctx, orderEventsConsumer, eventID); delErr != nil {
		c.logg.Error(logCtx, "failed to clear processed marker", delErr)
	}
	return processResult{nack: true}
}

func (c *Consumer) handle(ctx, logCtx context.Context, eventType, eventID string, data json.RawMessage) error {
	switch eventType {
	case EventVendorRegistered:
		var payload vendorRegisteredPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode vendor_registered")
		}
		if err := c.ledger.UpsertVendor(ctx, payload.VendorID, payload.Name); err != nil {
			return err
		}
		c.logg.Info(c.logg.WithVendorID(logCtx, payload.VendorID.String()), "vendor upserted")
		return nil

	case EventOrderDelivered:
		var payload orderDeliveredPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode order_delivered")
		}
		result, err := c.ledger.CreditOnDelivery(ctx, CreditOnDeliveryInput{
			VendorID:       payload.VendorID,
			OrderCode:      payload.OrderCode,
			SubOrderID:     payload.SubOrderID,
			AmountPaise:    payload.AmountPaise,
			MaturesAt:      payload.MaturesAt,
			DeliveredAt:    payload.DeliveredAt,
			IdempotencyKey: orderKey(EventOrderDelivered, payload.SubOrderID, payload.OrderCode, eventID),
			SourceEventID:  eventID,
		})
		if err != nil {
			return err
		}
		c.logApplied(logCtx, result)
		return nil

	case EventOrderCanceled, EventReturnApproved:
		var payload orderDeductionPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode "+eventType)
		}
		txnType := enums.WalletTxnCancelDeduct
		key := orderKey(EventOrderCanceled, payload.SubOrderID, payload.OrderCode, eventID)
		if eventType == EventReturnApproved {
			txnType = enums.WalletTxnReturnDeduct
			key = orderKey(EventReturnApproved, payload.ReturnID, "", eventID)
		}
		result, err := c.ledger.DebitOnCancelOrReturn(ctx, DebitInput{
			VendorID:       payload.VendorID,
			Type:           txnType,
			OrderCode:      payload.OrderCode,
			SubOrderID:     payload.SubOrderID,
			AmountPaise:    payload.AmountPaise,
			IdempotencyKey: key,
			Note:           strPtr(payload.Reason),
			SourceEventID:  eventID,
		})
		if err != nil {
			return err
		}
		c.logApplied(logCtx, result)
		return nil
	}
	return nil
}

func (c *Consumer) logApplied(logCtx context.Context, result *AppendResult) {
	msg := "ledger entry appended"
	if !result.Created {
		msg = "ledger entry already recorded"
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"vendor_id":      result.Transaction.VendorID.String(),
		"transaction_id": result.Transaction.ID.String(),
		"type":           result.Transaction.Type,
	}), msg)
}

// orderKey derives the ledger idempotency key from the business identifier,
// so a republished event with a fresh event id still maps to the same row.
func orderKey(prefix, primary, secondary, fallback string) string {
	for _, candidate := range []string{primary, secondary, fallback} {
		if v := strings.TrimSpace(candidate); v != "" {
			return prefix + ":" + v
		}
	}
	return prefix
}

// isTransient reports failures worth a redelivery. A vendor that is not yet
// registered is transient: vendor_registered may still be in flight.
func isTransient(err error) bool {
	if errors.Is(err, ErrVendorNotFound) {
		return true
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	return pkgerrors.MetadataFor(typed.Code()).Retryable
}
