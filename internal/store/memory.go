package store

import "sync"

// Memory is an in-process Backend with the same quota semantics as Bolt.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
	usage  usage
}

// NewMemory returns an empty Memory backend. quota <= 0 disables the quota.
func NewMemory(quota int64) *Memory {
	return &Memory{values: map[string][]byte{}, usage: newUsage(quota)}
}

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usage.admit(key, int64(len(value))); err != nil {
		return err
	}
	m.values[key] = append([]byte(nil), value...)
	m.usage.set(key, int64(len(value)))
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	m.usage.remove(key)
	return nil
}

func (m *Memory) Close() error { return nil }
