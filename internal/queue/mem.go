package queue

import (
	"context"
	"sync"
)

// memBroker is the in-process default: one buffered channel per queue name,
// created lazily. It satisfies Broker for single-replica deployments and
// for tests that don't want a real Redis/Kafka dependency.
type memBroker struct {
	mu     sync.Mutex
	queues map[string]chan []byte
	buffer int
}

func newMemBroker(buffer int) *memBroker {
	return &memBroker{queues: make(map[string]chan []byte), buffer: buffer}
}

func (m *memBroker) queue(name string) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.queues[name]
	if !ok {
		ch = make(chan []byte, m.buffer)
		m.queues[name] = ch
	}
	return ch
}

func (m *memBroker) Publish(ctx context.Context, queueName string, payload []byte) error {
	ch := m.queue(queueName)
	select {
	case ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *memBroker) Consume(ctx context.Context, queueName string) ([]byte, func(), error) {
	ch := m.queue(queueName)
	select {
	case payload := <-ch:
		return payload, func() {}, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (m *memBroker) Close() error { return nil }
