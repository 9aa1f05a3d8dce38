package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process store for single-instance deployments and tests.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

type memoryEntry struct {
	job     Job
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{jobs: map[string]memoryEntry{}, ttl: ttl, now: time.Now}
}

func (m *Memory) Save(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := memoryEntry{job: job}
	if m.ttl > 0 {
		e.expires = now.Add(m.ttl)
	}
	m.jobs[job.ID] = e

	for id, old := range m.jobs {
		if !old.expires.IsZero() && now.After(old.expires) {
			delete(m.jobs, id)
		}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Job, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[id]
	if !ok || (!e.expires.IsZero() && m.now().After(e.expires)) {
		return Job{}, false, nil
	}
	return e.job, true, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
