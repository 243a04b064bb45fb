package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/courseware-backend/internal/config"
)

// ErrLockHeld is returned when another reorder holds the list lock.
var ErrLockHeld = errors.New("list lock held")

// unlockScript deletes the lock only if it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker takes short-lived exclusive locks on sibling lists.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLocker creates a Locker whose locks expire after ttl.
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl}
}

// Acquire takes the lock on key and returns its release func, or
// ErrLockHeld when another holder has it.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		_ = unlockScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
	}, nil
}

// Publisher broadcasts events on section and page channels.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher creates a Publisher.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Channel returns the channel an event of scope/parent is published on.
func Channel(scope Scope, parentID uuid.UUID) string {
	if scope == ScopeSection {
		return config.CacheKey.SectionEventsChannel(parentID)
	}
	return config.CacheKey.PageEventsChannel(parentID)
}

// Publish sends ev to its channel.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(ev.Scope, ev.ParentID), payload).Err()
}

// Listen subscribes to channels and streams raw payloads until ctx ends
// or stop is called. The subscription is confirmed before Listen returns.
func (p *Publisher) Listen(ctx context.Context, channels ...string) (<-chan []byte, func(), error) {
	pubsub := p.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { _ = pubsub.Close() }, nil
}

// Queue is a Redis list used as a FIFO job queue.
type Queue struct {
	rdb *redis.Client
	key string
}

// NewQueue creates a Queue on the list key.
func NewQueue(rdb *redis.Client, key string) *Queue {
	return &Queue{rdb: rdb, key: key}
}

// Push appends a raw job.
func (q *Queue) Push(ctx context.Context, job []byte) error {
	return q.rdb.RPush(ctx, q.key, job).Err()
}

// Pop blocks up to timeout for the next job. It returns redis.Nil when
// the queue stayed empty.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, redis.Nil
	}
	return []byte(res[1]), nil
}

// TryPop returns the next job without blocking, or redis.Nil.
func (q *Queue) TryPop(ctx context.Context) ([]byte, error) {
	res, err := q.rdb.LPop(ctx, q.key).Bytes()
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Len returns the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Counter implements fixed-window counting for rate limits.
type Counter struct {
	rdb *redis.Client
}

// NewCounter creates a Counter.
func NewCounter(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb}
}

// Incr bumps key and sets its expiry on first use, returning the new count.
func (c *Counter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
