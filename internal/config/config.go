package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	// DatabaseURLは任意。未設定の場合はAPIサーバーが永続化なしで動作する。
	// migrateサブコマンドの実行時のみ必須。
	DatabaseURL string

	// Upstream API
	TikwmBaseURL string
	FetchTimeout time.Duration

	// Cache
	ProfileCacheTTL time.Duration

	// Scan defaults
	ScanPostLimit    int
	ScanDelaySeconds float64
	ScanMaxWorkers   int

	// Rate Limit
	RateLimitGeneral int
	RateLimitScan    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// すべてのキーにデフォルト値があるため、環境変数なしでも起動できる。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.TikwmBaseURL = getEnvString("TIKWM_BASE_URL", "https://www.tikwm.com")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	cfg.ProfileCacheTTL = getEnvDuration("PROFILE_CACHE_TTL", 5*time.Minute)
	cfg.ScanPostLimit = getEnvInt("SCAN_POST_LIMIT", 3)
	cfg.ScanDelaySeconds = getEnvFloat("SCAN_DELAY_SECONDS", 1.5)
	cfg.ScanMaxWorkers = getEnvInt("SCAN_MAX_WORKERS", 3)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitScan = getEnvInt("RATE_LIMIT_SCAN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
