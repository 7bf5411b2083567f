// Package queue is the pluggable durable-queue abstraction SPEC_FULL.md §2/§9
// wires behind a single message-broker URL: in-process channels for a
// single-replica dev deployment, Redis lists for a small fleet, Kafka topics
// for deployments that already run it. Grounded on the teacher's
// storage.Backend interface (one interface, dialect-selected by URL scheme,
// no leaky per-backend types reaching callers).
package queue

import (
	"context"
	"fmt"
	"strings"
)

// Broker is a named-queue publish/consume abstraction. Message is an
// opaque byte payload; callers encode/decode their own wire format (this
// package never needs to understand it).
type Broker interface {
	// Publish enqueues payload onto queueName. It must not block past ctx.
	Publish(ctx context.Context, queueName string, payload []byte) error

	// Consume blocks until a message is available on queueName or ctx is
	// done, returning the payload and an ack function the caller must
	// invoke once the message has been durably processed. Brokers that
	// don't need explicit acks (mem, and Kafka, which commits no offsets)
	// return a no-op ack.
	Consume(ctx context.Context, queueName string) (payload []byte, ack func(), err error)

	// Close releases any broker resources (connections, consumer groups).
	Close() error
}

// Open dispatches on url's scheme: mem:// (in-process, default, capacity
// taken from the query string's buffer=N, 256 if absent), redis://host:port
// (list-based LPUSH/BRPOPLPUSH with a processing list), kafka://broker1,broker2
// (topic-per-queue, read from partition 0 without joining a consumer group;
// a group=name query parameter is parsed but not used for consumption).
func Open(url string) (Broker, error) {
	switch {
	case url == "" || strings.HasPrefix(url, "mem://"):
		return newMemBroker(parseMemBuffer(url)), nil
	case strings.HasPrefix(url, "redis://"):
		return newRedisBroker(url)
	case strings.HasPrefix(url, "kafka://"):
		return newKafkaBroker(url)
	default:
		return nil, fmt.Errorf("unsupported broker url scheme: %s", url)
	}
}

func parseMemBuffer(url string) int {
	const marker = "buffer="
	idx := strings.Index(url, marker)
	if idx < 0 {
		return 256
	}
	rest := url[idx+len(marker):]
	if amp := strings.IndexByte(rest, '&'); amp >= 0 {
		rest = rest[:amp]
	}
	n := 0
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 256
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return 256
	}
	return n
}
