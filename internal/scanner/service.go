package scanner

import (
	"context"

	"github.com/hitoshi/reachscan/internal/model"
	"github.com/hitoshi/reachscan/internal/repository"
)

// Service はスキャン状態の参照をメモリとDBの両方から提供するクエリサービス。
// 実行中スキャンと直近完了分はメモリ、過去分はDBから返す。
// リポジトリがnilの場合はメモリのみで動作する。
type Service struct {
	scanner    *Scanner
	scanRepo   repository.ScanRepository
	resultRepo repository.ScanResultRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(s *Scanner, scanRepo repository.ScanRepository, resultRepo repository.ScanResultRepository) *Service {
	return &Service{
		scanner:    s,
		scanRepo:   scanRepo,
		resultRepo: resultRepo,
	}
}

// StartScan はスキャンを非同期実行し、スキャンIDを返す。
func (s *Service) StartScan(ctx context.Context, handles []string, cfg model.ScanConfig) (string, error) {
	return s.scanner.StartScan(ctx, handles, cfg)
}

// GetScan は指定IDのスキャンと、実行中の場合はその進捗を返す。
// 見つからない場合はSCAN_NOT_FOUNDエラーを返す。
func (s *Service) GetScan(ctx context.Context, scanID string) (*model.Scan, *Progress, error) {
	if scan, ok := s.scanner.GetScan(scanID); ok {
		if p, running := s.scanner.GetProgress(scanID); running {
			return &scan, &p, nil
		}
		return &scan, nil, nil
	}

	if s.scanRepo != nil {
		scan, err := s.scanRepo.FindByID(ctx, scanID)
		if err != nil {
			return nil, nil, err
		}
		if scan != nil {
			return scan, nil, nil
		}
	}

	return nil, nil, model.NewScanNotFoundError(scanID)
}

// ListScans はスキャンを開始時刻の降順でlimit件まで返す。
func (s *Service) ListScans(ctx context.Context, limit int) ([]model.Scan, error) {
	if s.scanRepo != nil {
		scans, err := s.scanRepo.List(ctx, limit)
		if err != nil {
			return nil, err
		}
		result := make([]model.Scan, 0, len(scans))
		for _, scan := range scans {
			result = append(result, *scan)
		}
		return result, nil
	}

	scans := s.scanner.ListScans()
	if len(scans) > limit {
		scans = scans[:limit]
	}
	return scans, nil
}

// GetPosts はスキャンの投稿レコードを返す。
func (s *Service) GetPosts(ctx context.Context, scanID string) ([]model.PostRecord, error) {
	if result, ok := s.scanner.GetResult(scanID); ok {
		return result.Posts, nil
	}
	if err := s.ensureExists(ctx, scanID); err != nil {
		return nil, err
	}
	if s.resultRepo == nil {
		return nil, nil
	}
	return s.resultRepo.ListPostsByScanID(ctx, scanID)
}

// GetVerdicts はスキャンのアカウント判定を返す。
func (s *Service) GetVerdicts(ctx context.Context, scanID string) ([]model.AccountVerdict, error) {
	if result, ok := s.scanner.GetResult(scanID); ok {
		return result.Verdicts, nil
	}
	if err := s.ensureExists(ctx, scanID); err != nil {
		return nil, err
	}
	if s.resultRepo == nil {
		return nil, nil
	}
	return s.resultRepo.ListVerdictsByScanID(ctx, scanID)
}

// GetAnalytics はスキャンのアカウント指標を返す。
func (s *Service) GetAnalytics(ctx context.Context, scanID string) ([]model.AccountAnalytics, error) {
	if result, ok := s.scanner.GetResult(scanID); ok {
		return result.Analytics, nil
	}
	if err := s.ensureExists(ctx, scanID); err != nil {
		return nil, err
	}
	if s.resultRepo == nil {
		return nil, nil
	}
	return s.resultRepo.ListAnalyticsByScanID(ctx, scanID)
}

// GetFailures はスキャンの失敗一覧を返す。
func (s *Service) GetFailures(ctx context.Context, scanID string) ([]model.ScanFailure, error) {
	if result, ok := s.scanner.GetResult(scanID); ok {
		return result.Failures, nil
	}
	if err := s.ensureExists(ctx, scanID); err != nil {
		return nil, err
	}
	if s.resultRepo == nil {
		return nil, nil
	}
	return s.resultRepo.ListFailuresByScanID(ctx, scanID)
}

// ensureExists はスキャンの存在を確認する。
func (s *Service) ensureExists(ctx context.Context, scanID string) error {
	_, _, err := s.GetScan(ctx, scanID)
	return err
}
