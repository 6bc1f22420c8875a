// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/reachscan/internal/cache"
	"github.com/hitoshi/reachscan/internal/config"
	"github.com/hitoshi/reachscan/internal/database"
	"github.com/hitoshi/reachscan/internal/dispatcher"
	"github.com/hitoshi/reachscan/internal/fetcher"
	"github.com/hitoshi/reachscan/internal/handler"
	"github.com/hitoshi/reachscan/internal/logger"
	"github.com/hitoshi/reachscan/internal/metrics"
	"github.com/hitoshi/reachscan/internal/middleware"
	"github.com/hitoshi/reachscan/internal/model"
	"github.com/hitoshi/reachscan/internal/repository"
	"github.com/hitoshi/reachscan/internal/scanner"
	"github.com/hitoshi/reachscan/internal/security"
	"github.com/hitoshi/reachscan/internal/tikwm"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// scanモードではstdoutを結果出力に使うため、ログはstderrに出す
	if cmd == CommandScan && w == nil {
		w = os.Stderr
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("tikwm_base_url", cfg.TikwmBaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandScan:
		return runScan(cfg, args[1:])
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// buildPipeline は取得パイプライン一式（クライアント → フェッチャー → ディスパッチャ）を構築する。
// 上流ベースURLはSSRF検証を通ってから使用される。
func buildPipeline(cfg *config.Config, collector metrics.MetricsCollector) (*dispatcher.Dispatcher, *cache.ProfileCache, error) {
	ssrfGuard := security.NewSSRFGuard()
	if err := ssrfGuard.ValidateBaseURL(cfg.TikwmBaseURL); err != nil {
		return nil, nil, fmt.Errorf("invalid TIKWM_BASE_URL: %w", err)
	}

	httpClient := ssrfGuard.NewSafeClient(cfg.FetchTimeout)
	client := tikwm.NewClient(httpClient, slog.Default(), cfg.TikwmBaseURL)

	profileCache := cache.NewProfileCache(cfg.ProfileCacheTTL)
	sanitizer := security.NewNameSanitizer()

	f := fetcher.NewFetcher(client, profileCache, sanitizer, collector, slog.Default())
	d := dispatcher.NewDispatcher(f, collector, slog.Default())

	return d, profileCache, nil
}

// defaultScanConfig は設定ファイル由来のスキャン既定値を返す。
func defaultScanConfig(cfg *config.Config) model.ScanConfig {
	return model.ScanConfig{
		PostLimit:    cfg.ScanPostLimit,
		DelaySeconds: cfg.ScanDelaySeconds,
		MaxWorkers:   cfg.ScanMaxWorkers,
	}
}

// runServe はAPIサーバーモードで起動する。
// DATABASE_URLが設定されていればスキャン結果を永続化し、
// 未設定の場合はメモリ上の結果のみで動作する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. 取得パイプライン
	disp, profileCache, err := buildPipeline(cfg, collector)
	if err != nil {
		return err
	}

	// 3. DB接続（任意）
	var (
		db            *sql.DB
		scanRepo      repository.ScanRepository
		resultRepo    repository.ScanResultRepository
		dbHealthCheck handler.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		scanRepo = repository.NewPostgresScanRepo(db)
		resultRepo = repository.NewPostgresScanResultRepo(db)
		dbHealthCheck = func(ctx context.Context) error {
			return database.Ping(ctx, db, 3*time.Second)
		}
	} else {
		slog.Info("DATABASE_URL is not set; running without persistence")
	}

	// 4. スキャナとクエリサービス
	scn := scanner.NewScanner(disp, scanRepo, resultRepo, collector, slog.Default())
	scanService := scanner.NewService(scn, scanRepo, resultRepo)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitScan),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		ScanService:       scanService,
		ScanDefaults:      defaultScanConfig(cfg),
		ProfileCache:      profileCache,
		DBHealthCheck:     dbHealthCheck,
		MetricsHandler:    metrics.Handler(registry),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 実行中のスキャンをキャンセルして完了を待つ
	scn.Shutdown()
	rateLimiter.Stop()

	slog.Info("API server stopped gracefully")
	return nil
}

// runScan はCLIモードでスキャンを1回同期実行し、結果をJSONでstdoutに出力する。
// DBは使用しない。Ctrl-Cで実行中のスキャンをキャンセルできる。
func runScan(cfg *config.Config, handles []string) error {
	if len(handles) == 0 {
		return fmt.Errorf("usage: reachscan scan HANDLE [HANDLE...]")
	}

	disp, _, err := buildPipeline(cfg, metrics.Nop{})
	if err != nil {
		return err
	}

	scn := scanner.NewScanner(disp, nil, nil, metrics.Nop{}, slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := scn.RunScan(ctx, handles, defaultScanConfig(cfg))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode scan result: %w", err)
	}

	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
