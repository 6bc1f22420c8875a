package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/reachscan/internal/cache"
	"github.com/hitoshi/reachscan/internal/middleware"
	"github.com/hitoshi/reachscan/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// スキャン
	ScanService  ScanServiceInterface
	ScanDefaults model.ScanConfig

	// キャッシュ
	ProfileCache *cache.ProfileCache

	// ヘルスチェック（DBなしのデプロイではnil）
	DBHealthCheck HealthChecker

	// Prometheusスクレイプハンドラー
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	scanHandler := NewScanHandler(deps.ScanService, deps.ScanDefaults)
	cacheHandler := NewCacheHandler(deps.ProfileCache)
	healthHandler := NewHealthHandler(deps.DBHealthCheck)

	// --- 運用ルート（レート制限の外）---

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/scans", func(r chi.Router) {
			// POST /api/scans - スキャン開始（スキャン専用レート制限を追加）
			r.With(deps.RateLimiter.ScanMiddleware()).Post("/", scanHandler.StartScan)

			r.Get("/", scanHandler.ListScans)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", scanHandler.GetScan)
				r.Get("/posts", scanHandler.GetPosts)
				r.Get("/verdicts", scanHandler.GetVerdicts)
				r.Get("/analytics", scanHandler.GetAnalytics)
				r.Get("/failures", scanHandler.GetFailures)
			})
		})

		r.Route("/api/cache", func(r chi.Router) {
			r.Get("/", cacheHandler.GetCacheStats)
			r.Delete("/", cacheHandler.ClearCache)
		})
	})

	return r
}
