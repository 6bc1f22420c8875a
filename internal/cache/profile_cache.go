// Package cache はプロフィール取得結果の短命メモ化を提供する。
// 同一セッション内の冗長なAPI呼び出しを避けるためのもので、
// TTL経過後のエントリは読み取り時に破棄される（バックグラウンド掃除はしない）。
package cache

import (
	"sync"
	"time"

	"github.com/hitoshi/reachscan/internal/model"
)

// DefaultTTL はプロフィールエントリの既定の有効期間。
// 上流APIのデータ変動性の想定に合わせて5分とする。
const DefaultTTL = 5 * time.Minute

// entry はキャッシュエントリとその格納時刻。
type entry struct {
	info     model.ProfileInfo
	storedAt time.Time
}

// ProfileCache はハンドルをキーとするプロフィールのTTL付きキャッシュ。
// 1つの排他領域が背後のマップ全体を保護する。ロック保持時間はマップ操作のみで、
// ネットワーク呼び出しはロックの外で行うこと。
type ProfileCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time // テスト用に差し替え可能
}

// NewProfileCache は指定TTLのProfileCacheを生成する。
// ttlが0以下の場合はDefaultTTLを使用する。
func NewProfileCache(ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProfileCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get はハンドルに対応する有効なプロフィールを返す。
// エントリが存在しない、または格納からTTLを超過している場合はミスとなる。
// 期限切れエントリはこの時点で削除する。
func (c *ProfileCache) Get(handle string) (model.ProfileInfo, bool) {
	c.mu.RLock()
	e, ok := c.entries[handle]
	c.mu.RUnlock()

	if !ok {
		return model.ProfileInfo{}, false
	}

	if c.now().Sub(e.storedAt) > c.ttl {
		c.mu.Lock()
		// 再確認: 他のゴルーチンが同じキーを更新している可能性がある
		if cur, ok := c.entries[handle]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, handle)
		}
		c.mu.Unlock()
		return model.ProfileInfo{}, false
	}

	return e.info, true
}

// Put はハンドルに対応するプロフィールを格納する。
func (c *ProfileCache) Put(handle string, info model.ProfileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[handle] = entry{info: info, storedAt: c.now()}
}

// Clear は全エントリを年齢にかかわらず破棄する。
// パイプラインからは呼ばないこと。オペレータ操作専用。
func (c *ProfileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len は現在のエントリ数を返す。テストおよびメトリクス用。
func (c *ProfileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
