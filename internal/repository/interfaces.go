// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/reachscan/internal/model"
)

// ScanRepository はスキャン実行記録の永続化インターフェース。
type ScanRepository interface {
	// Create はスキャンを作成する。
	Create(ctx context.Context, scan *model.Scan) error

	// UpdateResult はスキャン完了時に状態と件数を更新する。
	UpdateResult(ctx context.Context, scan *model.Scan) error

	// FindByID は指定IDのスキャンを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Scan, error)

	// List はスキャンを開始時刻の降順でlimit件まで取得する。
	List(ctx context.Context, limit int) ([]*model.Scan, error)
}

// ScanResultRepository はスキャン結果（投稿・判定・指標・失敗）の永続化インターフェース。
// 結果一式はスキャン完了時に1トランザクションで保存する。
type ScanResultRepository interface {
	// SaveResults はスキャン1回分の結果一式を同一トランザクションで保存する。
	SaveResults(
		ctx context.Context,
		scanID string,
		posts []model.PostRecord,
		verdicts []model.AccountVerdict,
		analytics []model.AccountAnalytics,
		failures []model.ScanFailure,
	) error

	// ListPostsByScanID はスキャンの投稿レコードを保存順で取得する。
	ListPostsByScanID(ctx context.Context, scanID string) ([]model.PostRecord, error)

	// ListVerdictsByScanID はスキャンのアカウント判定をハンドル昇順で取得する。
	ListVerdictsByScanID(ctx context.Context, scanID string) ([]model.AccountVerdict, error)

	// ListAnalyticsByScanID はスキャンのアカウント指標をハンドル昇順で取得する。
	ListAnalyticsByScanID(ctx context.Context, scanID string) ([]model.AccountAnalytics, error)

	// ListFailuresByScanID はスキャンの失敗一覧を取得する。
	ListFailuresByScanID(ctx context.Context, scanID string) ([]model.ScanFailure, error)
}
