package redis

import (
	"context"
	"sync"
)

type mockRedis struct {
	locker sync.Mutex
	lookup map[string][]byte
}

// NewMockClient returns an in-memory KeyValue for tests.
func NewMockClient() KeyValue {
	return &mockRedis{
		lookup: make(map[string][]byte),
	}
}

func (m *mockRedis) Ping(ctx context.Context) error {
	return nil
}

func (m *mockRedis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.locker.Lock()
	defer m.locker.Unlock()
	ba, ok := m.lookup[key]
	return ba, ok, nil
}

func (m *mockRedis) Set(ctx context.Context, key string, value []byte) error {
	m.locker.Lock()
	m.lookup[key] = append([]byte(nil), value...)
	m.locker.Unlock()
	return nil
}

func (m *mockRedis) Delete(ctx context.Context, key string) error {
	m.locker.Lock()
	delete(m.lookup, key)
	m.locker.Unlock()
	return nil
}
