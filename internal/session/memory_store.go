package session

import (
	"context"
	"sort"
	"sync"
)

// MemoryTokenStore keeps tokens in process memory. Tokens are lost on restart.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[int64]string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[int64]string)}
}

func (m *MemoryTokenStore) Get(_ context.Context, chatID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[chatID], nil
}

func (m *MemoryTokenStore) Set(_ context.Context, chatID int64, token string) error {
	m.mu.Lock()
	m.tokens[chatID] = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.tokens, chatID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) ListChatIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	ids := make([]int64, 0, len(m.tokens))
	for id := range m.tokens {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
