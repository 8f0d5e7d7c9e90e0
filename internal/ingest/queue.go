package ingest

import (
	"context"

	"github.com/pulsewire/newsplatform/internal/news"
	"github.com/pulsewire/newsplatform/pkg/kafka"
)

// Queue publishes canonical items to the news-ingest topic, keyed by content
// hash so retries of the same item land on the same partition. It satisfies
// poller.Sink.
type Queue struct {
	producer *kafka.Producer
}

// NewQueue wraps a Kafka producer bound to the ingest topic.
func NewQueue(producer *kafka.Producer) *Queue {
	return &Queue{producer: producer}
}

// Publish enqueues one item.
func (q *Queue) Publish(ctx context.Context, item news.Item) error {
	return q.producer.Publish(ctx, kafka.Event{Key: item.Hash, Value: item})
}

// Close flushes and closes the underlying producer.
func (q *Queue) Close() error {
	return q.producer.Close()
}

// Handler adapts the pipeline to the Kafka consumer callback. Decode
// failures are returned so the consumer logs and skips the message;
// pipeline errors are returned so the offset is not committed and the
// message redelivers.
func Handler(pipeline *Pipeline) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		item, err := kafka.DecodeJSON[news.Item](value)
		if err != nil {
			return err
		}
		_, err = pipeline.Ingest(ctx, item)
		return err
	}
}
