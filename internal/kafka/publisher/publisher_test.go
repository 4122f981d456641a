package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/kafka/producer"
	"github.com/example/pos-gateway/internal/kafka/publisher"
	"github.com/example/pos-gateway/internal/models"
)

type recordingProducer struct {
	msg producer.Message
	err error
}

func (r *recordingProducer) Send(_ context.Context, msg producer.Message) error {
	r.msg = msg
	return r.err
}

func TestPublishOrderStatus(t *testing.T) {
	prod := &recordingProducer{}
	pub := publisher.NewOrderStatusPublisher(prod, "pos.order-status", zerolog.Nop())
	event := models.OrderStatusEvent{EventID: "e1", Vendor: "square", OrderID: "o1", Status: models.OrderStatusPaid, Source: models.StatusSourceSquareWebhook}
	if err := pub.PublishOrderStatus(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if prod.msg.Topic != "pos.order-status" || prod.msg.Key != "square:o1" {
		t.Fatalf("unexpected topic/key %s %s", prod.msg.Topic, prod.msg.Key)
	}
	if prod.msg.Headers["content-type"] != "application/json" || prod.msg.Headers["source"] != models.StatusSourceSquareWebhook {
		t.Fatalf("unexpected headers %v", prod.msg.Headers)
	}
	var decoded models.OrderStatusEvent
	if err := json.Unmarshal(prod.msg.Value, &decoded); err != nil || decoded.Status != models.OrderStatusPaid {
		t.Fatalf("unexpected payload %s %v", prod.msg.Value, err)
	}
}

func TestPublishWrapsProducerError(t *testing.T) {
	boom := errors.New("boom")
	pub := publisher.NewOrderStatusPublisher(&recordingProducer{err: boom}, "t", zerolog.Nop())
	if err := pub.PublishOrderStatus(context.Background(), models.OrderStatusEvent{OrderID: "o"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNilPublisher(t *testing.T) {
	pub := publisher.NewOrderStatusPublisher(nil, "t", zerolog.Nop())
	if pub != nil {
		t.Fatalf("expected nil publisher without producer")
	}
	if err := pub.PublishOrderStatus(context.Background(), models.OrderStatusEvent{}); !errors.Is(err, publisher.ErrProducerNotInitialised) {
		t.Fatalf("expected not initialised, got %v", err)
	}
}
