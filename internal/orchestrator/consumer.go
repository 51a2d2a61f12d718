package orchestrator

import (
	"context"
	"log/slog"

	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/extract"
)

// Consumer drives the orchestrator from the event bus, processing
// price-change notifications asynchronously.
type Consumer struct {
	bus  domain.EventBus
	orch *Orchestrator

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	// SellerIDs is the list of sellers to consume for (empty = global).
	SellerIDs []string
}

// NewConsumer creates an async consumer feeding the orchestrator.
func NewConsumer(bus domain.EventBus, orch *Orchestrator) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		bus:    bus,
		orch:   orch,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the price-change topic for the configured sellers.
func (c *Consumer) Start(cfg ConsumerConfig) error {
	if len(cfg.SellerIDs) == 0 {
		sub, err := c.bus.Subscribe(c.ctx, "_global", domain.TopicPriceChanged, c.handleMessage)
		if err != nil {
			return err
		}
		c.subscriptions = append(c.subscriptions, sub)
		slog.Info("global consumer started", "topic", domain.TopicPriceChanged)
		return nil
	}

	for _, sellerID := range cfg.SellerIDs {
		sub, err := c.bus.Subscribe(c.ctx, sellerID, domain.TopicPriceChanged, c.handleMessage)
		if err != nil {
			slog.Error("failed to start consumer for seller",
				"seller_id", sellerID,
				"error", err,
			)
			continue
		}
		c.subscriptions = append(c.subscriptions, sub)
		slog.Info("seller consumer started",
			"seller_id", sellerID,
			"topic", domain.TopicPriceChanged,
		)
	}

	return nil
}

// handleMessage parses one bus message and runs it through the pipeline.
// Parse failures are logged and dropped; pipeline failures are already
// folded into the outcome and counted.
func (c *Consumer) handleMessage(ctx context.Context, msg *domain.Message) error {
	event, err := extract.ParseEvent(msg.Payload)
	if err != nil {
		slog.Error("failed to parse price event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if event.SellerID == "" {
		event.SellerID = msg.SellerID
	}

	outcome := c.orch.ProcessOne(ctx, event)

	slog.Info("price event consumed",
		"event_id", event.ID,
		"seller_id", event.SellerID,
		"sku", event.SKU,
		"kind", outcome.Kind,
		"price_changed", outcome.PriceChanged,
		"duration_ms", outcome.DurationMs,
	)

	return nil
}

// Stop unsubscribes all consumers.
func (c *Consumer) Stop() error {
	c.cancel()

	for _, sub := range c.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	c.subscriptions = nil

	slog.Info("consumers stopped")
	return nil
}

// SubscriptionCount reports how many active subscriptions the consumer
// holds, for the health surface.
func (c *Consumer) SubscriptionCount() int {
	return len(c.subscriptions)
}
