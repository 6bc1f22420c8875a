// Package scanner はスキャン1回分のオーケストレーションを提供する。
// ハンドル検証 → 並列取得 → 投稿分類 → アカウント集計 → 永続化の順に実行し、
// 実行中スキャンの状態と進捗をメモリ上で追跡する。
package scanner

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/reachscan/internal/analytics"
	"github.com/hitoshi/reachscan/internal/classifier"
	"github.com/hitoshi/reachscan/internal/dispatcher"
	"github.com/hitoshi/reachscan/internal/metrics"
	"github.com/hitoshi/reachscan/internal/model"
	"github.com/hitoshi/reachscan/internal/repository"
)

// BatchDispatcher は並列取得のインターフェース。
// テストではフェイク実装に差し替える。
type BatchDispatcher interface {
	RunBatch(ctx context.Context, handles []string, cfg model.ScanConfig, progress dispatcher.ProgressFunc) []dispatcher.Outcome
}

// Result はスキャン1回分の完全な結果。
type Result struct {
	Scan      model.Scan
	Posts     []model.PostRecord
	Verdicts  []model.AccountVerdict
	Analytics []model.AccountAnalytics
	Failures  []model.ScanFailure
}

// Progress は実行中スキャンの進捗。
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// scanEntry はメモリ上で追跡するスキャン1件分の状態。
// resultは完了後にのみ設定される。
type scanEntry struct {
	scan     model.Scan
	progress Progress
	result   *Result
}

// Scanner はスキャンのオーケストレーションサービス。
// リポジトリがnilの場合（CLIモード・DBなしデプロイ）は永続化をスキップし、
// メモリ上の状態のみで動作する。
type Scanner struct {
	dispatcher BatchDispatcher
	scanRepo   repository.ScanRepository
	resultRepo repository.ScanResultRepository
	metrics    metrics.MetricsCollector
	logger     *slog.Logger

	mu      sync.RWMutex
	entries map[string]*scanEntry

	wg       sync.WaitGroup
	baseCtx  context.Context
	cancelFn context.CancelFunc
}

// NewScanner はScannerの新しいインスタンスを生成する。
func NewScanner(
	d BatchDispatcher,
	scanRepo repository.ScanRepository,
	resultRepo repository.ScanResultRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Scanner {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Scanner{
		dispatcher: d,
		scanRepo:   scanRepo,
		resultRepo: resultRepo,
		metrics:    collector,
		logger:     logger,
		entries:    make(map[string]*scanEntry),
		baseCtx:    baseCtx,
		cancelFn:   cancel,
	}
}

// ValidateHandles は入力ハンドルを正規化し、有効なハンドルが1件もない場合にエラーを返す。
// 形式不正のハンドルは取り除かずに返す（ハンドル単位の失敗として記録するため）。
func ValidateHandles(handles []string) ([]string, error) {
	seen := make(map[string]bool, len(handles))
	normalized := make([]string, 0, len(handles))
	hasValid := false

	for _, raw := range handles {
		h := model.NormalizeHandle(raw)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		normalized = append(normalized, h)
		if model.ValidateHandle(h) {
			hasValid = true
		}
	}

	if !hasValid {
		return nil, model.NewNoValidHandlesError()
	}
	return normalized, nil
}

// RunScan はスキャンを同期実行して結果を返す。CLIモードで使用する。
func (s *Scanner) RunScan(ctx context.Context, handles []string, cfg model.ScanConfig) (*Result, error) {
	targets, err := ValidateHandles(handles)
	if err != nil {
		return nil, err
	}

	scan := s.newScan(targets, cfg)
	if err := s.persistScanStart(ctx, &scan); err != nil {
		return nil, err
	}
	s.track(scan, len(targets))

	result := s.execute(ctx, scan, targets)
	return result, nil
}

// StartScan はスキャンを非同期実行し、スキャンIDを即座に返す。
// 実行はサービスのライフサイクルに紐づくコンテキストで継続するため、
// HTTPリクエストの完了に影響されない。
func (s *Scanner) StartScan(ctx context.Context, handles []string, cfg model.ScanConfig) (string, error) {
	targets, err := ValidateHandles(handles)
	if err != nil {
		return "", err
	}

	scan := s.newScan(targets, cfg)
	if err := s.persistScanStart(ctx, &scan); err != nil {
		return "", err
	}
	s.track(scan, len(targets))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(s.baseCtx, scan, targets)
	}()

	return scan.ID, nil
}

// GetScan はメモリ上で追跡しているスキャンを返す。
func (s *Scanner) GetScan(scanID string) (model.Scan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[scanID]
	if !ok {
		return model.Scan{}, false
	}
	return e.scan, true
}

// GetProgress は実行中スキャンの進捗を返す。実行中でない場合はfalseを返す。
func (s *Scanner) GetProgress(scanID string) (Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[scanID]
	if !ok || e.scan.Status != model.ScanStatusRunning {
		return Progress{}, false
	}
	return e.progress, true
}

// GetResult はメモリ上に保持している完了済みスキャンの結果を返す。
// DBなしのデプロイでも直近のスキャン結果を参照できるようにするためのもの。
func (s *Scanner) GetResult(scanID string) (*Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[scanID]
	if !ok || e.result == nil {
		return nil, false
	}
	return e.result, true
}

// ListScans はメモリ上で追跡しているスキャンを開始時刻の降順で返す。
func (s *Scanner) ListScans() []model.Scan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scans := make([]model.Scan, 0, len(s.entries))
	for _, e := range s.entries {
		scans = append(scans, e.scan)
	}
	sortScansByStartDesc(scans)
	return scans
}

// Shutdown は実行中のスキャンをキャンセルして完了を待つ。
func (s *Scanner) Shutdown() {
	s.cancelFn()
	s.wg.Wait()
}

// newScan はスキャン記録を初期化する。
func (s *Scanner) newScan(targets []string, cfg model.ScanConfig) model.Scan {
	return model.Scan{
		ID:          uuid.NewString(),
		Status:      model.ScanStatusRunning,
		HandleCount: len(targets),
		Config:      cfg.Clamp(),
		StartedAt:   time.Now().UTC(),
	}
}

// track はスキャンをメモリ上の追跡対象に加える。
func (s *Scanner) track(scan model.Scan, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[scan.ID] = &scanEntry{
		scan:     scan,
		progress: Progress{Total: total},
	}
}

// persistScanStart はスキャン開始を記録する。リポジトリがnilの場合はスキップ。
func (s *Scanner) persistScanStart(ctx context.Context, scan *model.Scan) error {
	s.metrics.RecordScanStarted()
	if s.scanRepo == nil {
		return nil
	}
	return s.scanRepo.Create(ctx, scan)
}

// execute はスキャン本体を実行する。
// ハンドル単位の失敗はディスパッチャ境界で結果に変換済みのため、
// ここではバッチ全体のキャンセルのみをスキャン失敗として扱う。
func (s *Scanner) execute(ctx context.Context, scan model.Scan, targets []string) *Result {
	s.logger.Info("スキャンを開始します",
		slog.String("scan_id", scan.ID),
		slog.Int("handle_count", len(targets)),
	)

	outcomes := s.dispatcher.RunBatch(ctx, targets, scan.Config, func(completed, total int, handle string, ok bool) {
		s.mu.Lock()
		if e, exists := s.entries[scan.ID]; exists {
			e.progress.Completed = completed
			e.progress.Total = total
		}
		s.mu.Unlock()
	})

	var (
		posts    []model.PostRecord
		failures []model.ScanFailure
	)
	for _, outcome := range outcomes {
		if outcome.OK() {
			scan.SuccessCount++
			posts = append(posts, outcome.Records...)
			continue
		}
		scan.FailureCount++
		failure := *outcome.Failure
		failure.ScanID = scan.ID
		failures = append(failures, failure)
	}

	postVerdicts := make([]model.ThrottleVerdict, len(posts))
	for i, p := range posts {
		postVerdicts[i] = classifier.ClassifyPost(p)
	}

	result := &Result{
		Posts:     posts,
		Verdicts:  analytics.BuildAccountVerdicts(posts, postVerdicts),
		Analytics: analytics.Aggregate(posts, postVerdicts),
		Failures:  failures,
	}

	scan.PostCount = len(posts)
	scan.Status = model.ScanStatusCompleted
	if ctx.Err() != nil {
		scan.Status = model.ScanStatusFailed
	}
	scan.FinishedAt = time.Now().UTC()
	result.Scan = scan

	s.persistScanResult(scan, result)

	s.mu.Lock()
	if e, exists := s.entries[scan.ID]; exists {
		e.scan = scan
		e.result = result
	}
	s.mu.Unlock()

	s.logger.Info("スキャンが完了しました",
		slog.String("scan_id", scan.ID),
		slog.String("status", string(scan.Status)),
		slog.Int("success_count", scan.SuccessCount),
		slog.Int("failure_count", scan.FailureCount),
		slog.Int("post_count", scan.PostCount),
		slog.Float64("duration_ms", float64(scan.FinishedAt.Sub(scan.StartedAt).Milliseconds())),
	)

	return result
}

// persistScanResult はスキャン結果を永続化する。リポジトリがnilの場合はスキップ。
// 永続化の失敗はスキャン結果を失わせない（メモリ上の結果は保持される）。
func (s *Scanner) persistScanResult(scan model.Scan, result *Result) {
	if s.scanRepo == nil || s.resultRepo == nil {
		return
	}

	// 実行元コンテキストがキャンセル済みでも記録は残す
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.resultRepo.SaveResults(ctx, scan.ID, result.Posts, result.Verdicts, result.Analytics, result.Failures); err != nil {
		s.logger.Error("スキャン結果の保存に失敗しました",
			slog.String("scan_id", scan.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.scanRepo.UpdateResult(ctx, &scan); err != nil {
		s.logger.Error("スキャン記録の更新に失敗しました",
			slog.String("scan_id", scan.ID),
			slog.String("error", err.Error()),
		)
	}
}

// sortScansByStartDesc はスキャンを開始時刻の降順に並べる。
func sortScansByStartDesc(scans []model.Scan) {
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].StartedAt.After(scans[j].StartedAt)
	})
}
