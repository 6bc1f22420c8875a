package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/reachscan/internal/tikwm"
)

const (
	// MaxRetries は1回の呼び出しに対する最大リトライ回数。
	// 初回 + 2回で最大3回試行する。
	MaxRetries = 2
	// retryBackoff はリトライ間の固定待機時間。
	// 上流APIのレート制限が秒単位で回復する想定のため指数にはしない。
	retryBackoff = 1 * time.Second
)

// ShouldRetry は失敗した試行をリトライすべきかを判定する。
// attemptは完了済みリトライ回数（初回失敗時は0）。
// コンテキスト起因のキャンセルは一時的エラーであってもリトライしない。
func ShouldRetry(err error, attempt int) bool {
	if attempt >= MaxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *tikwm.FetchError
	if errors.As(err, &fe) {
		return fe.Transient()
	}
	return false
}

// RetryDelay はattempt回目のリトライ前の待機時間を返す。
func RetryDelay(attempt int) time.Duration {
	return retryBackoff
}
