package model

import "time"

// ScanStatus はスキャンの実行状態を表す。
type ScanStatus string

const (
	// ScanStatusRunning は実行中のスキャン。
	ScanStatusRunning ScanStatus = "running"
	// ScanStatusCompleted は完了したスキャン。
	ScanStatusCompleted ScanStatus = "completed"
	// ScanStatusFailed は実行自体が失敗したスキャン。
	ScanStatusFailed ScanStatus = "failed"
)

// ScanConfig はスキャン1回分の数値設定。
// 範囲外の値はClampで許容範囲に丸める。
type ScanConfig struct {
	// PostLimit はアカウントごとに取得する投稿数（1〜50）。
	PostLimit int `json:"post_limit"`
	// DelaySeconds はタスクごとのネットワーク呼び出し前の待機秒数（0.5〜10.0）。
	DelaySeconds float64 `json:"delay_seconds"`
	// MaxWorkers はワーカープールの並列数（1〜10）。
	MaxWorkers int `json:"max_workers"`
}

// ScanConfigの許容範囲。
const (
	MinPostLimit    = 1
	MaxPostLimit    = 50
	MinDelaySeconds = 0.5
	MaxDelaySeconds = 10.0
	MinWorkers      = 1
	MaxWorkers      = 10
)

// Clamp は設定値を許容範囲に丸めたコピーを返す。
// ゼロ値のフィールドも下限に丸められる。
func (c ScanConfig) Clamp() ScanConfig {
	if c.PostLimit < MinPostLimit {
		c.PostLimit = MinPostLimit
	}
	if c.PostLimit > MaxPostLimit {
		c.PostLimit = MaxPostLimit
	}
	if c.DelaySeconds < MinDelaySeconds {
		c.DelaySeconds = MinDelaySeconds
	}
	if c.DelaySeconds > MaxDelaySeconds {
		c.DelaySeconds = MaxDelaySeconds
	}
	if c.MaxWorkers < MinWorkers {
		c.MaxWorkers = MinWorkers
	}
	if c.MaxWorkers > MaxWorkers {
		c.MaxWorkers = MaxWorkers
	}
	return c
}

// Scan はハンドル一式に対する1回の取得・分析実行を表す。
type Scan struct {
	ID           string     `json:"id"`
	Status       ScanStatus `json:"status"`
	HandleCount  int        `json:"handle_count"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	PostCount    int        `json:"post_count"`
	Config       ScanConfig `json:"config"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at,omitzero"`
}

// ScanFailure は1ハンドル分の失敗結果。
// 失敗理由はエラー分類コード（§エラーモデル）で分類する。
type ScanFailure struct {
	ScanID        string `json:"scan_id,omitempty"`
	AccountHandle string `json:"account_handle"`
	ReasonCode    string `json:"reason_code"`
	Message       string `json:"message"`
}

// ProbeKind は診断プローブが分類する失敗種別。
type ProbeKind string

const (
	// ProbeOK は上流APIがアカウントを正常に返したことを示す。
	ProbeOK ProbeKind = "ok"
	// ProbeHTTPError はHTTPレベルの失敗（非200ステータス）。
	ProbeHTTPError ProbeKind = "http_error"
	// ProbeAPIError はアプリケーションレベルの失敗（code != 0）。
	ProbeAPIError ProbeKind = "api_error"
	// ProbeNetworkError はトランスポートレベルの失敗（タイムアウト・接続不能）。
	ProbeNetworkError ProbeKind = "network_error"
)

// ProbeResult はアカウント状態の診断結果。
// 「空の成功」と本当の失敗を呼び出し元が区別するために使う。
type ProbeResult struct {
	AccountHandle string    `json:"account_handle"`
	Kind          ProbeKind `json:"kind"`
	StatusCode    int       `json:"status_code,omitempty"`
	APICode       int       `json:"api_code,omitempty"`
	Message       string    `json:"message,omitempty"`
}
