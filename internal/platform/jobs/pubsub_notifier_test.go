package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/g1nlyf/BikeWerk-sub001/internal/services"
)

func TestPubSubOrderNotifierPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	notifier, err := NewPubSubOrderNotifier(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderNotifier: %v", err)
	}

	createdAt := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	msg := services.OrderEventMessage{
		OrderCode:        "ORD-123456",
		OrderID:          "order-1",
		CustomerID:       "cust-1",
		CustomerName:     "Anna Schmidt",
		Status:           "booked",
		StorageMode:      "local_primary",
		BikeTitle:        "Canyon Ultimate CF SL 8",
		FinalPriceEur:    2987.4,
		BookingAmountRub: 5975,
		DeliveryMethod:   "cargo",
		CreatedAt:        createdAt,
	}

	if _, err := notifier.PublishOrderEvent(ctx, msg); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderCode != msg.OrderCode || payload.StorageMode != msg.StorageMode {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["orderCode"]; attr != "ORD-123456" {
		t.Fatalf("expected orderCode attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["storageMode"]; attr != "local_primary" {
		t.Fatalf("expected storageMode attribute, got %q", attr)
	}
}

func TestNewPubSubOrderNotifierRequiresTopic(t *testing.T) {
	if _, err := NewPubSubOrderNotifier(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
