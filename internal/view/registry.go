package view

import (
	"sync"
	"time"

	"github.com/hitoshi/decodetube/internal/metrics"
)

// Factory はクライアントIDに対応するMachineを生成する。
type Factory func(clientID string) *Machine

// RegistryConfig はRegistryの設定を保持する。
type RegistryConfig struct {
	IdleTimeout     time.Duration // 最終アクセスからこの時間を過ぎたビューを破棄する
	CleanupInterval time.Duration // 破棄判定の間隔
}

// DefaultRegistryConfig はデフォルトの設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// entry はクライアントごとのMachineと最終アクセス時刻を保持する。
type entry struct {
	machine    *Machine
	lastAccess time.Time
}

// Registry はクライアントIDごとのMachineを管理する。
type Registry struct {
	config  RegistryConfig
	factory Factory
	metrics metrics.MetricsCollector

	mu      sync.Mutex
	entries map[string]*entry

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry は新しいRegistryを生成する。
// バックグラウンドで放置されたビューのクリーンアップを開始する。
func NewRegistry(factory Factory, config RegistryConfig, collector metrics.MetricsCollector) *Registry {
	if collector == nil {
		collector = metrics.Nop{}
	}
	defaults := DefaultRegistryConfig()
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}

	r := &Registry{
		config:  config,
		factory: factory,
		metrics: collector,
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Get はクライアントのMachineを取得する。存在しない場合は生成する。
func (r *Registry) Get(clientID string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[clientID]; ok {
		e.lastAccess = time.Now()
		return e.machine
	}

	m := r.factory(clientID)
	r.entries[clientID] = &entry{machine: m, lastAccess: time.Now()}
	r.metrics.SetActiveViews(len(r.entries))
	return m
}

// Len は保持中のビュー数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop はクリーンアップを停止し、全ビューの取得をキャンセルする。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		defer r.mu.Unlock()
		for id, e := range r.entries {
			e.machine.Close()
			delete(r.entries, id)
		}
		r.metrics.SetActiveViews(0)
	})
}

// cleanupLoop はバックグラウンドで放置されたビューを定期的に破棄する。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからIdleTimeoutを超えたビューを破棄する。
func (r *Registry) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		if now.Sub(e.lastAccess) > r.config.IdleTimeout {
			e.machine.Close()
			delete(r.entries, id)
		}
	}
	r.metrics.SetActiveViews(len(r.entries))
}
