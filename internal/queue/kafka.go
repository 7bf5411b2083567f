package queue

import (
	"context"
	"strings"
	"sync"

	"github.com/Shopify/sarama"
)

// kafkaBroker maps each queue name onto its own Kafka topic, for
// deployments that already run Kafka for other ingestion and want the
// Classifier/Enricher/Matcher/Dispatcher queues replicated the same way
// (SPEC_FULL.md §2). The url's group=name query parameter is stored in
// group (default "xrplnotify"), but Consume does not join a consumer group:
// it reads partition 0 of each topic from the newest offset through a plain
// partition consumer and commits no offsets.
type kafkaBroker struct {
	brokers []string
	group   string
	client  sarama.Client

	mu        sync.Mutex
	producer  sarama.SyncProducer
	consumers map[string]sarama.PartitionConsumer
}

func newKafkaBroker(url string) (*kafkaBroker, error) {
	rest := strings.TrimPrefix(url, "kafka://")
	group := "xrplnotify"
	if idx := strings.Index(rest, "?"); idx >= 0 {
		query := rest[idx+1:]
		rest = rest[:idx]
		for _, part := range strings.Split(query, "&") {
			if strings.HasPrefix(part, "group=") {
				group = strings.TrimPrefix(part, "group=")
			}
		}
	}
	brokers := strings.Split(rest, ",")

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &kafkaBroker{
		brokers:   brokers,
		group:     group,
		client:    client,
		producer:  producer,
		consumers: make(map[string]sarama.PartitionConsumer),
	}, nil
}

func (k *kafkaBroker) Publish(ctx context.Context, queueName string, payload []byte) error {
	_, _, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: queueName,
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (k *kafkaBroker) Consume(ctx context.Context, queueName string) ([]byte, func(), error) {
	pc, err := k.partitionConsumer(queueName)
	if err != nil {
		return nil, nil, err
	}

	select {
	case msg := <-pc.Messages():
		return msg.Value, func() {}, nil
	case err := <-pc.Errors():
		return nil, nil, err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (k *kafkaBroker) partitionConsumer(queueName string) (sarama.PartitionConsumer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if pc, ok := k.consumers[queueName]; ok {
		return pc, nil
	}

	consumer, err := sarama.NewConsumerFromClient(k.client)
	if err != nil {
		return nil, err
	}
	pc, err := consumer.ConsumePartition(queueName, 0, sarama.OffsetNewest)
	if err != nil {
		return nil, err
	}
	k.consumers[queueName] = pc
	return pc, nil
}

func (k *kafkaBroker) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, pc := range k.consumers {
		_ = pc.Close()
	}
	_ = k.producer.Close()
	return k.client.Close()
}
