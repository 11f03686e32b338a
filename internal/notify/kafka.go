package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const publishTimeout = 5 * time.Second

type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(topic string, brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w}
}

// Notify publishes asynchronously. The write runs detached from the
// caller's context so a finished request cannot cancel delivery, and any
// failure is only logged.
func (n *KafkaNotifier) Notify(_ context.Context, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: failed to marshal %s payload: %v", eventType, err)
		return
	}

	// Key by order id when present so events for one order stay ordered.
	key := eventType
	if orderID, ok := payload["order_id"].(string); ok && orderID != "" {
		key = orderID
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		msg := kafka.Message{
			Key:   []byte(key),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(eventType)},
			},
		}
		if err := n.writer.WriteMessages(ctx, msg); err != nil {
			log.Printf("notify: failed to publish %s: %v", eventType, err)
		}
	}()
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
