package tikwm

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hitoshi/reachscan/internal/model"
)

// ErrorKind はフェッチ失敗の分類。
type ErrorKind string

const (
	// KindHTTPError はHTTPレベルの失敗（非200ステータス）。
	KindHTTPError ErrorKind = "http_error"
	// KindAPIError はアプリケーションレベルの失敗（code != 0）。
	KindAPIError ErrorKind = "api_error"
	// KindNetworkError はトランスポートレベルの失敗（タイムアウト・接続不能・不正レスポンス）。
	KindNetworkError ErrorKind = "network_error"
)

// FetchError は上流APIフェッチの分類済みエラー。
// パイプライン境界でゼロ値レコードに縮退させる前に、
// 診断のためこの分類を必ず保持すること。
type FetchError struct {
	Kind       ErrorKind
	StatusCode int    // KindHTTPErrorのとき有効
	APICode    int    // KindAPIErrorのとき有効
	Msg        string // 上流のmsgまたは内部の説明
	Err        error  // 根本原因（ある場合）
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPError:
		return fmt.Sprintf("上流APIがステータス %d を返しました", e.StatusCode)
	case KindAPIError:
		return fmt.Sprintf("上流APIエラー (code=%d): %s", e.APICode, e.Msg)
	default:
		return fmt.Sprintf("ネットワークエラー: %s", e.Msg)
	}
}

// Unwrap は根本原因を返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReasonCode は統一エラーフォーマットの理由コードを返す。
func (e *FetchError) ReasonCode() string {
	switch e.Kind {
	case KindHTTPError:
		return model.ErrCodeHTTPError
	case KindAPIError:
		return model.ErrCodeAPIError
	default:
		return model.ErrCodeNetworkError
	}
}

// transientMsgMarkers はレート制限を示唆するmsgの部分文字列。
// tikwmはエラーコード表を公開していないため、msgの文言で一時性を判定する。
var transientMsgMarkers = []string{
	"rate limit",
	"too many",
	"frequent",
	"try again",
}

// Transient はリトライに値する一時的な失敗かを返す。
//   - ネットワークエラー: タイムアウトは一時的、その他の接続失敗も一時的として扱う
//   - HTTPエラー: 429および5xxは一時的
//   - APIエラー: msgがレート制限を示唆する場合のみ一時的
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case KindNetworkError:
		return true
	case KindHTTPError:
		return e.StatusCode == 429 || e.StatusCode >= 500
	case KindAPIError:
		lower := strings.ToLower(e.Msg)
		for _, marker := range transientMsgMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// newNetworkError はトランスポートエラーをFetchErrorに包む。
func newNetworkError(err error) *FetchError {
	msg := "接続に失敗しました"
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		msg = "タイムアウトしました"
	}
	return &FetchError{Kind: KindNetworkError, Msg: msg, Err: err}
}

// AsFetchError はerrorからFetchErrorを取り出す。取り出せない場合は
// ネットワークエラーとして包み直す（分類不能な失敗の既定カテゴリ）。
func AsFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Kind: KindNetworkError, Msg: err.Error(), Err: err}
}
