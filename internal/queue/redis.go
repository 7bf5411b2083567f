package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
)

// redisBroker implements Broker over Redis lists using the reliable-queue
// pattern: BRPOPLPUSH moves a message atomically from queueName onto
// queueName+":processing" so a crash between receive and ack doesn't lose
// it; ack removes it from the processing list. Uses the same redigo pool
// shape as internal/enrich's distributed lock, per SPEC_FULL.md §9's note
// that both the lock and the broker share one Redis client library.
type redisBroker struct {
	pool *redis.Pool
}

func newRedisBroker(url string) (*redisBroker, error) {
	addr := strings.TrimPrefix(url, "redis://")
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
	conn := pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		return nil, fmt.Errorf("connecting to redis broker at %s: %w", addr, err)
	}
	return &redisBroker{pool: pool}, nil
}

func (r *redisBroker) Publish(ctx context.Context, queueName string, payload []byte) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Do("LPUSH", queueName, payload)
	return err
}

func (r *redisBroker) Consume(ctx context.Context, queueName string) ([]byte, func(), error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Close()

	processingKey := queueName + ":processing"
	reply, err := redis.Bytes(conn.Do("BRPOPLPUSH", queueName, processingKey, 5))
	if err != nil {
		if err == redis.ErrNil {
			return nil, nil, context.DeadlineExceeded
		}
		return nil, nil, err
	}

	ack := func() {
		ackConn := r.pool.Get()
		defer ackConn.Close()
		_, _ = ackConn.Do("LREM", processingKey, 1, reply)
	}
	return reply, ack, nil
}

func (r *redisBroker) Close() error {
	return r.pool.Close()
}
