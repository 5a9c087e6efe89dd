/*Package notify publishes gateway mutation notifications to Kafka.
*/
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pointb-tech/wayfarer/core"
	"github.com/pointb-tech/wayfarer/core/logger"
)

// KafkaNotifierBuilder is a helper builder for the KafkaNotifier
type KafkaNotifierBuilder struct {
	// Brokers is a comma separated list of broker addresses. Mandatory.
	Brokers string
	// Topic is the topic notifications are published to. Mandatory.
	Topic string
}

// KafkaNotifier implements core.Notifier on a Kafka topic. Publishing is
// best effort: a broker outage is logged and does not fail the request that
// produced the notification.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a kafka notifier
func NewKafkaNotifier(knb *KafkaNotifierBuilder) *KafkaNotifier {
	if knb.Brokers == "" || knb.Topic == "" {
		panic("kafka notifier requires brokers and topic")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(knb.Brokers, ",")...),
		Topic:                  knb.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: writer}
}

// Notify publishes one mutation notification. The table name is the message
// key, so mutations of one table keep their relative order per partition.
func (n *KafkaNotifier) Notify(table string, action core.Action, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(table),
		Value: payload,
	})
	if err != nil {
		logger.Default().WithError(err).Errorln("cannot publish notification for table", table)
	}
}

// Close closes the underlying writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
