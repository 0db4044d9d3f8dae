package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/jobqueue/domain"
)

const defaultRedisPrefix = "premium:jobs"

// reserveScript moves expired leases back to the ready set, then leases up
// to ARGV[3] due jobs.
//
// KEYS[1] ready zset (score: available at, unix ms)
// KEYS[2] leased zset (score: lease expiry, unix ms)
// ARGV[1] now, ARGV[2] lease expiry, ARGV[3] limit
const reserveScript = `
local expired = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1])
for _, id in ipairs(expired) do
  redis.call("ZREM", KEYS[2], id)
  redis.call("ZADD", KEYS[1], ARGV[1], id)
end
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[3]))
for _, id in ipairs(ids) do
  redis.call("ZREM", KEYS[1], id)
  redis.call("ZADD", KEYS[2], ARGV[2], id)
end
return ids
`

// extendScript moves a lease expiry forward while the stored body still
// belongs to the caller's attempt.
//
// KEYS[1] job body, KEYS[2] leased zset
// ARGV[1] attempt, ARGV[2] new expiry (unix ms), ARGV[3] job id
const extendScript = `
local body = redis.call("GET", KEYS[1])
if not body then
  return -1
end
if tonumber(cjson.decode(body).attempts) ~= tonumber(ARGV[1]) then
  return 0
end
if not redis.call("ZSCORE", KEYS[2], ARGV[3]) then
  return 0
end
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
return 1
`

// RedisQueue keeps job bodies as JSON strings and schedules them through two
// sorted sets.
type RedisQueue struct {
	client  *redis.Client
	genID   *snowflake.Node
	clock   clock.Clock
	lease   time.Duration
	prefix  string
	reserve *redis.Script
	extend  *redis.Script
}

func NewRedisQueue(client *redis.Client, genID *snowflake.Node, clk clock.Clock, lease time.Duration) *RedisQueue {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &RedisQueue{
		client:  client,
		genID:   genID,
		clock:   clk,
		lease:   lease,
		prefix:  defaultRedisPrefix,
		reserve: redis.NewScript(reserveScript),
		extend:  redis.NewScript(extendScript),
	}
}

func (q *RedisQueue) readyKey() string  { return q.prefix + ":ready" }
func (q *RedisQueue) leasedKey() string { return q.prefix + ":leased" }
func (q *RedisQueue) failedKey() string { return q.prefix + ":failed" }

func (q *RedisQueue) jobKey(id string) string { return q.prefix + ":job:" + id }

func (q *RedisQueue) Push(ctx context.Context, task string, payload any) (snowflake.ID, error) {
	if q == nil || q.client == nil {
		return 0, domain.ErrQueueUnavailable
	}
	job, err := newJob(ctx, q.genID, q.clock.Now(), task, payload)
	if err != nil {
		return 0, err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return 0, err
	}

	id := job.ID.String()
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(id), body, 0)
		pipe.ZAdd(ctx, q.readyKey(), redis.Z{Score: float64(job.AvailableAt.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return job.ID, nil
}

func (q *RedisQueue) Reserve(ctx context.Context, limit int) ([]domain.Job, error) {
	if q == nil || q.client == nil {
		return nil, domain.ErrQueueUnavailable
	}
	if limit <= 0 {
		return nil, nil
	}

	now := q.clock.Now()
	leasedUntil := now.Add(q.lease)
	ids, err := q.reserve.Run(ctx, q.client,
		[]string{q.readyKey(), q.leasedKey()},
		now.UnixMilli(), leasedUntil.UnixMilli(), limit,
	).StringSlice()
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.Job, 0, len(ids))
	for _, id := range ids {
		job, err := q.load(ctx, id)
		if err != nil {
			return jobs, err
		}
		if job == nil {
			q.client.ZRem(ctx, q.leasedKey(), id)
			continue
		}
		job.Status = domain.JobStatusRunning
		job.Attempts++
		job.LeasedUntil = &leasedUntil
		job.UpdatedAt = now
		if err := q.store(ctx, *job); err != nil {
			return jobs, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (q *RedisQueue) Extend(ctx context.Context, job domain.Job, until time.Time) error {
	id := job.ID.String()
	res, err := q.extend.Run(ctx, q.client,
		[]string{q.jobKey(id), q.leasedKey()},
		job.Attempts, until.UnixMilli(), id,
	).Int()
	if err != nil {
		return err
	}
	return leaseResult(res, id)
}

func (q *RedisQueue) Complete(ctx context.Context, job domain.Job) error {
	if err := q.owns(ctx, job); err != nil {
		return err
	}
	id := job.ID.String()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.leasedKey(), id)
		pipe.Del(ctx, q.jobKey(id))
		return nil
	})
	return err
}

func (q *RedisQueue) Retry(ctx context.Context, job domain.Job, at time.Time, cause error) error {
	if err := q.owns(ctx, job); err != nil {
		return err
	}
	job.Status = domain.JobStatusPending
	job.AvailableAt = at
	job.LeasedUntil = nil
	job.LastError = errorText(cause)
	job.UpdatedAt = q.clock.Now()
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	id := job.ID.String()
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(id), body, 0)
		pipe.ZRem(ctx, q.leasedKey(), id)
		pipe.ZAdd(ctx, q.readyKey(), redis.Z{Score: float64(at.UnixMilli()), Member: id})
		return nil
	})
	return err
}

// Fail parks the job body and lists its id under the failed key for manual
// inspection.
func (q *RedisQueue) Fail(ctx context.Context, job domain.Job, cause error) error {
	if err := q.owns(ctx, job); err != nil {
		return err
	}
	job.Status = domain.JobStatusFailed
	job.LeasedUntil = nil
	job.LastError = errorText(cause)
	job.UpdatedAt = q.clock.Now()
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	id := job.ID.String()
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(id), body, 0)
		pipe.ZRem(ctx, q.leasedKey(), id)
		pipe.LPush(ctx, q.failedKey(), id)
		return nil
	})
	return err
}

// owns reports ErrLeaseLost when job's reservation has been superseded.
func (q *RedisQueue) owns(ctx context.Context, job domain.Job) error {
	id := job.ID.String()
	stored, err := q.load(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case stored == nil:
		return leaseResult(-1, id)
	case stored.Attempts != job.Attempts || stored.Status != domain.JobStatusRunning:
		return leaseResult(0, id)
	}
	return nil
}

func leaseResult(code int, id string) error {
	switch code {
	case 1:
		return nil
	case -1:
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	default:
		return fmt.Errorf("%w: %s", domain.ErrLeaseLost, id)
	}
}

func (q *RedisQueue) load(ctx context.Context, id string) (*domain.Job, error) {
	body, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (q *RedisQueue) store(ctx context.Context, job domain.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.Set(ctx, q.jobKey(job.ID.String()), body, 0).Err()
}
