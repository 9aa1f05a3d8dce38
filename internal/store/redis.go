package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis stores each job as a hash under job:<id>:result.
type Redis struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisWithClient(c, ttl), nil
}

func newRedisWithClient(c *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: c, keyNS: "job", ttl: ttl}
}

func (s *Redis) key(id string) string { return fmt.Sprintf("%s:%s:result", s.keyNS, id) }

func (s *Redis) Save(ctx context.Context, job Job) error {
	key := s.key(job.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobFields(job))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, id string) (Job, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("load job %s: %w", id, err)
	}
	if len(res) == 0 {
		return Job{}, false, nil
	}
	return jobFromFields(id, res), true, nil
}

// jobFields flattens a job into hash fields.
func jobFields(job Job) map[string]any {
	m := map[string]any{
		"status":      job.Status,
		"file":        job.File,
		"backend":     job.Backend,
		"error":       job.Error,
		"created":     job.Created.Format(time.RFC3339Nano),
		"duration_ms": job.Duration.Milliseconds(),
	}
	if job.Result != nil {
		m["result"] = string(job.Result)
	}
	return m
}

// jobFromFields is the inverse of jobFields. Unparseable times and durations
// are left zero.
func jobFromFields(id string, res map[string]string) Job {
	job := Job{
		ID:      id,
		Status:  res["status"],
		File:    res["file"],
		Backend: res["backend"],
		Error:   res["error"],
	}
	if v := res["result"]; v != "" {
		job.Result = []byte(v)
	}
	if v := res["created"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.Created = t
		}
	}
	if v := res["duration_ms"]; v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			job.Duration = time.Duration(ms) * time.Millisecond
		}
	}
	return job
}

func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Redis) Close() error { return s.client.Close() }
