package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type Locker struct {
	mock.Mock
}

func (m *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *Locker) Release(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type EventStore struct {
	mock.Mock
}

func (m *EventStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, id, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *EventStore) Forget(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// Published is one message captured by Publisher.
type Published struct {
	Subject string
	Key     string
	Payload []byte
}

// Publisher records every message and returns Err.
type Publisher struct {
	mu       sync.Mutex
	Messages []Published
	Err      error
}

func (p *Publisher) Publish(_ context.Context, subject, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Published{Subject: subject, Key: key, Payload: payload})
	return p.Err
}

func (p *Publisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	subjects := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		subjects = append(subjects, m.Subject)
	}
	return subjects
}
