package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTaskNotFound is returned by Revive when no buried task has the id.
var ErrTaskNotFound = errors.New("task not found")

// dequeueScript atomically moves the earliest due task from the ready set
// to the processing set, scored by its visibility deadline, and returns
// its payload.
//
// KEYS[1] ready zset, KEYS[2] processing zset, KEYS[3] payload hash
// ARGV[1] now (ms), ARGV[2] visibility deadline (ms)
var dequeueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)
local payload = redis.call('HGET', KEYS[3], id)
if not payload then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[2], id)
return payload
`)

// requeueScript moves tasks whose visibility deadline passed back to the
// ready set.
//
// KEYS[1] ready zset, KEYS[2] processing zset
// ARGV[1] now (ms)
var requeueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('ZADD', KEYS[1], ARGV[1], id)
end
return #ids
`)

// RedisQueue keeps tasks in Redis:
//
//	<prefix>:ready       ZSET task id -> NotBefore (unix ms)
//	<prefix>:processing  ZSET task id -> visibility deadline (unix ms)
//	<prefix>:tasks       HASH task id -> JSON payload
//	<prefix>:dead        LIST JSON payloads of buried tasks
type RedisQueue struct {
	rdb        *redis.Client
	ready      string
	processing string
	tasks      string
	dead       string
	visibility time.Duration
	now        func() time.Time
}

// NewRedisQueue returns a queue under key prefix.  A dequeued task that
// is neither acked nor re-enqueued within visibility becomes due again.
func NewRedisQueue(rdb *redis.Client, prefix string, visibility time.Duration) *RedisQueue {
	return &RedisQueue{
		rdb:        rdb,
		ready:      prefix + ":ready",
		processing: prefix + ":processing",
		tasks:      prefix + ":tasks",
		dead:       prefix + ":dead",
		visibility: visibility,
		now:        time.Now,
	}
}

var _ Queue = (*RedisQueue)(nil)

func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	id := t.ID.String()
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.tasks, id, payload)
		p.ZRem(ctx, q.processing, id)
		p.ZAdd(ctx, q.ready, redis.Z{Score: float64(t.NotBefore.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", t, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	now := q.now()
	keys := []string{q.ready, q.processing, q.tasks}
	payload, err := dequeueScript.Run(ctx, q.rdb, keys, now.UnixMilli(), now.Add(q.visibility).UnixMilli()).Text()
	if errors.Is(err, redis.Nil) {
		return Task{}, ErrNoTask
	}
	if err != nil {
		return Task{}, fmt.Errorf("dequeue: %w", err)
	}
	var t Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}

func (q *RedisQueue) Ack(ctx context.Context, t Task) error {
	id := t.ID.String()
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.processing, id)
		p.HDel(ctx, q.tasks, id)
		return nil
	})
	return err
}

func (q *RedisQueue) Bury(ctx context.Context, t Task, reason string) error {
	t.LastError = reason
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	id := t.ID.String()
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.processing, id)
		p.ZRem(ctx, q.ready, id)
		p.HDel(ctx, q.tasks, id)
		p.LPush(ctx, q.dead, payload)
		return nil
	})
	return err
}

func (q *RedisQueue) Requeue(ctx context.Context) (int, error) {
	n, err := requeueScript.Run(ctx, q.rdb, []string{q.ready, q.processing}, q.now().UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("requeue: %w", err)
	}
	return n, nil
}

// Dead returns the buried tasks, most recent first.
func (q *RedisQueue) Dead(ctx context.Context) ([]Task, error) {
	raw, err := q.rdb.LRange(ctx, q.dead, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(raw))
	for _, r := range raw {
		var t Task
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, fmt.Errorf("decode dead task: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Revive moves a buried task back onto the ready set with its attempt
// counter reset.  It is due immediately.
func (q *RedisQueue) Revive(ctx context.Context, id uuid.UUID) (Task, error) {
	raw, err := q.rdb.LRange(ctx, q.dead, 0, -1).Result()
	if err != nil {
		return Task{}, err
	}
	for _, r := range raw {
		var t Task
		if err := json.Unmarshal([]byte(r), &t); err != nil || t.ID != id {
			continue
		}
		// a concurrent Revive may have taken it already
		removed, err := q.rdb.LRem(ctx, q.dead, 1, r).Result()
		if err != nil {
			return Task{}, err
		}
		if removed == 0 {
			return Task{}, ErrTaskNotFound
		}
		t.Attempt = 0
		t.LastError = ""
		t.NotBefore = q.now()
		return t, q.Enqueue(ctx, t)
	}
	return Task{}, ErrTaskNotFound
}
