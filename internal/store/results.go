// Package store keeps classification job results for the demo server.
package store

import (
	"context"
	"encoding/json"
	"time"
)

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Job is one stored request outcome.
type Job struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	File     string          `json:"file"`
	Backend  string          `json:"backend"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Created  time.Time       `json:"created"`
	Duration time.Duration   `json:"duration"`
}

// Results saves and loads jobs by id. Implementations expire jobs after their
// configured TTL.
type Results interface {
	Save(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open returns a Redis-backed store when redisURL is set, memory otherwise.
func Open(redisURL string, ttl time.Duration) (Results, error) {
	if redisURL == "" {
		return NewMemory(ttl), nil
	}
	return NewRedis(redisURL, ttl)
}
