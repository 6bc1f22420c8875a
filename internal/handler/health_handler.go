package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker はヘルスチェックの依存確認関数。DBなしのデプロイではnilでよい。
type HealthChecker func(ctx context.Context) error

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checkDB HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checkDB HealthChecker) *HealthHandler {
	return &HealthHandler{checkDB: checkDB}
}

// Health はサービスの稼働状態を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if h.checkDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := h.checkDB(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
