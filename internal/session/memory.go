package session

import (
	"context"
	"sync"
)

// MemoryBackend はプロセス内メモリにトークンを保持するBackend。
// プロセスの再起動でトークンは失われる。
type MemoryBackend struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryBackend はMemoryBackendを生成する。
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tokens: make(map[string]string)}
}

// Load はクライアントのトークンを取得する。
func (b *MemoryBackend) Load(_ context.Context, clientID string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tokens[clientID], nil
}

// Save はクライアントのトークンを上書き保存する。
func (b *MemoryBackend) Save(_ context.Context, clientID, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[clientID] = token
	return nil
}

// Delete はクライアントのトークンを削除する。
func (b *MemoryBackend) Delete(_ context.Context, clientID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, clientID)
	return nil
}

// PingContext はヘルスチェック用。メモリバックエンドは常に正常。
func (b *MemoryBackend) PingContext(_ context.Context) error {
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
