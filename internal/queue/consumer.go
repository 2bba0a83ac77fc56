package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/receiptscan/internal/models"
)

// ReceiptHandler processes one decoded receipt event.
type ReceiptHandler func(ctx context.Context, evt models.ReceiptEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// DecodeReceiptEvent parses a RECEIPTS message payload.
func DecodeReceiptEvent(data []byte) (models.ReceiptEvent, error) {
	var evt models.ReceiptEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return models.ReceiptEvent{}, fmt.Errorf("decode receipt event: %w", err)
	}
	if evt.ReceiptID == "" {
		return models.ReceiptEvent{}, fmt.Errorf("decode receipt event: missing receipt_id")
	}
	return evt, nil
}

// ConsumeReceipts delivers new receipt events to handler until ctx is done.
// Each API instance uses its own consumer name so every instance sees every
// event. Malformed messages are terminated rather than redelivered.
func (c *Consumer) ConsumeReceipts(ctx context.Context, consumerName string, handler ReceiptHandler) error {
	stream, err := c.js.Stream(ctx, ReceiptsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", ReceiptsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              consumerName,
		Durable:           consumerName,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           10 * time.Second,
		MaxDeliver:        3,
		FilterSubject:     ReceiptsSubjectBase + ".>",
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: 10 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				evt, err := DecodeReceiptEvent(msg.Data())
				if err != nil {
					slog.Warn("drop receipt event", "subject", msg.Subject(), "error", err)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, evt); err != nil {
					slog.Error("process receipt event error", "receipt_id", evt.ReceiptID, "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("receipt consumer started", "consumer", consumerName)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
