package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Its contents do not survive the process.
type Memory struct {
	// FailReads and FailWrites, when set, are returned by every read or write.
	FailReads  error
	FailWrites error

	mu   sync.Mutex
	data map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads != nil {
		return "", false, m.FailReads
	}
	v, ok := m.data[namespace][key]
	return v, ok, nil
}

func (m *Memory) SetMany(ctx context.Context, namespace string, pairs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string]string)
		m.data[namespace] = ns
	}
	for k, v := range pairs {
		ns[k] = v
	}
	return nil
}
