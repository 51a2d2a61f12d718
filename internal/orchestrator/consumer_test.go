package orchestrator

import (
	"context"
	"testing"

	"github.com/opensource-commerce/shrike/internal/domain"
)

// subscribingBus hands the registered handler back to the test so it
// can inject messages directly.
type subscribingBus struct {
	domain.EventBus
	handlers map[string]domain.MessageHandler
}

func (b *subscribingBus) Subscribe(ctx context.Context, sellerID, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	b.handlers[sellerID+"/"+topic] = handler
	return &fakeSub{topic: topic}, nil
}

type fakeSub struct{ topic string }

func (s *fakeSub) Unsubscribe() error { return nil }
func (s *fakeSub) Topic() string      { return s.topic }

func TestConsumer(t *testing.T) {
	repo := &fakeRepo{
		listings: map[string]*domain.Listing{"SKU-001": listingFixture("SKU-001")},
		strategy: chaseStrategy(),
	}
	orch := newTestOrchestrator(repo, nil, 4)

	bus := &subscribingBus{handlers: make(map[string]domain.MessageHandler)}
	consumer := NewConsumer(bus, orch)

	if err := consumer.Start(ConsumerConfig{SellerIDs: []string{"seller-001"}}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if consumer.SubscriptionCount() != 1 {
		t.Fatalf("expected 1 subscription, got %d", consumer.SubscriptionCount())
	}

	handler := bus.handlers["seller-001/"+domain.TopicPriceChanged]
	if handler == nil {
		t.Fatal("no handler registered for the price-change topic")
	}

	t.Run("ProcessesValidMessage", func(t *testing.T) {
		msg := &domain.Message{
			ID:       "msg-001",
			SellerID: "seller-001",
			Payload:  []byte(`{"seller_id": "seller-001", "sku": "SKU-001", "competitor_price": 49.50, "offer_count": 3}`),
		}
		if err := handler(context.Background(), msg); err != nil {
			t.Fatalf("handler failed: %v", err)
		}
		if snap := orch.Stats(); snap.SuccessfulRepricings != 1 {
			t.Errorf("expected 1 successful repricing, got %d", snap.SuccessfulRepricings)
		}
	})

	t.Run("RejectsMalformedPayload", func(t *testing.T) {
		msg := &domain.Message{ID: "msg-002", SellerID: "seller-001", Payload: []byte(`{broken`)}
		if err := handler(context.Background(), msg); err == nil {
			t.Error("expected parse error for malformed payload")
		}
	})

	if err := consumer.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if consumer.SubscriptionCount() != 0 {
		t.Error("expected subscriptions cleared after Stop")
	}
}
