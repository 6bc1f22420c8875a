package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, upstream, scan, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード。
// ハンドル単位の失敗理由コード（ScanFailure.ReasonCode）としても使用する。
const (
	ErrCodeInvalidHandle  = "INVALID_HANDLE_FORMAT"
	ErrCodeHTTPError      = "HTTP_ERROR"
	ErrCodeAPIError       = "API_ERROR"
	ErrCodeNetworkError   = "NETWORK_ERROR"
	ErrCodeEmptyResult    = "EMPTY_RESULT"
	ErrCodeScanNotFound   = "SCAN_NOT_FOUND"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNoValidHandles = "NO_VALID_HANDLES"
)

// NewInvalidHandleError はハンドル形式エラーを生成する。
func NewInvalidHandleError(handle string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidHandle,
		Message:  fmt.Sprintf("無効なハンドル形式です: %s", handle),
		Category: "validation",
		Action:   "ハンドルは英数字・ピリオド・アンダースコアのみ、1〜24文字で指定してください。",
	}
}

// NewScanNotFoundError はスキャン未検出エラーを生成する。
func NewScanNotFoundError(scanID string) *APIError {
	return &APIError{
		Code:     ErrCodeScanNotFound,
		Message:  fmt.Sprintf("指定されたスキャンが見つかりません: %s", scanID),
		Category: "scan",
		Action:   "スキャンIDを確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewNoValidHandlesError は有効なハンドルが1件もない場合のエラーを生成する。
func NewNoValidHandlesError() *APIError {
	return &APIError{
		Code:     ErrCodeNoValidHandles,
		Message:  "有効なハンドルが1件も含まれていません。",
		Category: "validation",
		Action:   "ハンドル一覧の形式を確認してください。",
	}
}
