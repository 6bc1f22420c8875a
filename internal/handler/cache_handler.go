package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/reachscan/internal/cache"
)

// CacheHandler はプロフィールキャッシュのオペレータ操作ハンドラー。
type CacheHandler struct {
	cache *cache.ProfileCache
}

// NewCacheHandler はCacheHandlerを生成する。
func NewCacheHandler(c *cache.ProfileCache) *CacheHandler {
	return &CacheHandler{cache: c}
}

// ClearCache はプロフィールキャッシュを全消去する。
// DELETE /api/cache
func (h *CacheHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	cleared := h.cache.Len()
	h.cache.Clear()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"cleared_entries": cleared})
}

// GetCacheStats はキャッシュの現在のエントリ数を返す。
// GET /api/cache
func (h *CacheHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"entries": h.cache.Len()})
}
