package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartattendance/internal/logger"
)

// Frame is one camera capture: the face regions a device cropped from it,
// each referenced by an image URL the face service can fetch.
type Frame struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	Regions    []string  `json:"regions"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewFrame stamps a fresh id on a frame from deviceID.
func NewFrame(deviceID string, regions []string, at time.Time) Frame {
	return Frame{ID: uuid.NewString(), DeviceID: deviceID, Regions: regions, CapturedAt: at}
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, f Frame) error
	Consume(ctx context.Context) (<-chan Frame, error)
}

// InMemory is a channel-backed queue for single-process deployments and tests.
type InMemory struct {
	ch chan Frame
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Frame, size)}
}

// Publish enqueues a frame, blocking while the queue is full.
func (q *InMemory) Publish(ctx context.Context, f Frame) error {
	select {
	case q.ch <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers. It is closed when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Frame, error) {
	out := make(chan Frame)
	go func() {
		defer close(out)
		for {
			select {
			case f := <-q.ch:
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string, log *zap.Logger) *RedisQueue {
	if key == "" {
		key = "attendance:frames"
	}
	return &RedisQueue{client: client, key: key, log: logger.OrNop(log)}
}

// Publish enqueues a frame.
func (q *RedisQueue) Publish(ctx context.Context, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams frames using BRPOP. Undecodable entries are dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Frame, error) {
	out := make(chan Frame)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					q.log.Warn("queue pop failed", zap.Error(err))
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			f, err := Decode([]byte(res[1]))
			if err != nil {
				q.log.Warn("dropping malformed frame", zap.Error(err))
				continue
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Decode parses a JSON frame.
func Decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, err
	}
	if f.ID == "" {
		return Frame{}, errors.New("frame has no id")
	}
	return f, nil
}
