// Package dispatcher はハンドル集合に対する並列フェッチの制御を提供する。
// semaphoreパターンで最大並列数を制御し、タスクごとの待機でレート制限を守る。
// すべてのハンドル単位の失敗はタスク境界で捕捉して結果に変換する。
// 1件の失敗がバッチ全体を中断させることはない。
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/reachscan/internal/metrics"
	"github.com/hitoshi/reachscan/internal/model"
	"github.com/hitoshi/reachscan/internal/tikwm"
)

// PostFetcher はハンドル1件分の取得処理のインターフェース。
// テストではフェイク実装に差し替える。
type PostFetcher interface {
	FetchPosts(ctx context.Context, handle string, limit int) ([]model.PostRecord, error)
	ProbeAccountStatus(ctx context.Context, handle string) model.ProbeResult
}

// Outcome はハンドル1件分の処理結果。成功時はRecordsに投稿レコードが入り、
// 失敗時はFailureに分類済みの理由が入る（どちらか一方のみ）。
type Outcome struct {
	Handle  string
	Records []model.PostRecord
	Failure *model.ScanFailure
}

// OK は成功した結果かを返す。
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// ProgressFunc はタスク完了のたびに呼ばれる進捗通知コールバック。
// 完了順に直列に呼ばれるため、呼び出し側での排他は不要。
type ProgressFunc func(completed, total int, handle string, ok bool)

// Dispatcher はハンドル集合の並列取得を制御する。
type Dispatcher struct {
	fetcher PostFetcher
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error // テスト用に差し替え可能
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(fetcher PostFetcher, collector metrics.MetricsCollector, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		fetcher: fetcher,
		metrics: collector,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// RunBatch はハンドル集合を並列に処理し、完了順の結果一覧を返す。
// 設定値は許容範囲に丸めてから使用する。入力のハンドルは正規化・重複除去され、
// 形式不正のハンドルはネットワーク呼び出しなしで失敗結果になる。
// コンテキストがキャンセルされた場合、未実行のタスクはキャンセル失敗として記録される。
func (d *Dispatcher) RunBatch(ctx context.Context, handles []string, cfg model.ScanConfig, progress ProgressFunc) []Outcome {
	cfg = cfg.Clamp()
	targets := normalizeHandles(handles)
	total := len(targets)

	if total == 0 {
		return nil
	}

	d.logger.Info("バッチ取得を開始します",
		slog.Int("handle_count", total),
		slog.Int("max_workers", cfg.MaxWorkers),
		slog.Int("post_limit", cfg.PostLimit),
		slog.Float64("delay_seconds", cfg.DelaySeconds),
	)

	results := make(chan Outcome, total)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, cfg.MaxWorkers)
	var wg sync.WaitGroup

	for _, handle := range targets {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(h string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			results <- d.runTask(ctx, h, cfg)
		}(handle)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// 完了順に収集する。進捗通知はこのゴルーチンからのみ呼ぶ。
	outcomes := make([]Outcome, 0, total)
	for outcome := range results {
		outcomes = append(outcomes, outcome)

		if outcome.OK() {
			d.metrics.RecordHandleSuccess()
		} else {
			d.metrics.RecordHandleFailure(outcome.Failure.ReasonCode)
		}

		if progress != nil {
			progress(len(outcomes), total, outcome.Handle, outcome.OK())
		}
	}

	d.logger.Info("バッチ取得が完了しました",
		slog.Int("handle_count", total),
	)

	return outcomes
}

// runTask はハンドル1件分のタスクを実行する。
// panicを含むすべての失敗をこの境界で捕捉し、失敗結果に変換する。
func (d *Dispatcher) runTask(ctx context.Context, handle string, cfg model.ScanConfig) (outcome Outcome) {
	outcome = Outcome{Handle: handle}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("取得タスクでpanicが発生しました",
				slog.String("handle", handle),
				slog.Any("panic", r),
			)
			outcome.Records = nil
			outcome.Failure = &model.ScanFailure{
				AccountHandle: handle,
				ReasonCode:    model.ErrCodeNetworkError,
				Message:       fmt.Sprintf("内部エラー: %v", r),
			}
		}
	}()

	// 形式不正のハンドルはネットワーク呼び出しの対象にしない
	if !model.ValidateHandle(handle) {
		outcome.Failure = &model.ScanFailure{
			AccountHandle: handle,
			ReasonCode:    model.ErrCodeInvalidHandle,
			Message:       "ハンドルの形式が不正です",
		}
		return outcome
	}

	// レート制限のためのタスクごとの待機
	if err := d.sleep(ctx, time.Duration(cfg.DelaySeconds*float64(time.Second))); err != nil {
		outcome.Failure = &model.ScanFailure{
			AccountHandle: handle,
			ReasonCode:    model.ErrCodeNetworkError,
			Message:       "キャンセルされました",
		}
		return outcome
	}

	records, err := d.fetcher.FetchPosts(ctx, handle, cfg.PostLimit)
	if err != nil {
		outcome.Failure = d.classifyFailure(ctx, handle, err)
		return outcome
	}

	// 投稿0件の「空の成功」は診断プローブで本当の失敗と区別する
	if len(records) == 0 {
		outcome.Failure = d.probeEmptyResult(ctx, handle)
		return outcome
	}

	outcome.Records = records
	return outcome
}

// classifyFailure はフェッチエラーを失敗結果に変換する。
func (d *Dispatcher) classifyFailure(ctx context.Context, handle string, err error) *model.ScanFailure {
	if ctx.Err() != nil {
		return &model.ScanFailure{
			AccountHandle: handle,
			ReasonCode:    model.ErrCodeNetworkError,
			Message:       "キャンセルされました",
		}
	}

	d.logger.Warn("ハンドルの取得に失敗しました",
		slog.String("handle", handle),
		slog.String("error", err.Error()),
	)

	return &model.ScanFailure{
		AccountHandle: handle,
		ReasonCode:    tikwm.AsFetchError(err).ReasonCode(),
		Message:       err.Error(),
	}
}

// probeEmptyResult は投稿0件のハンドルを診断プローブで分類する。
// プローブが正常を返した場合は投稿が本当に存在しない（非公開・削除済み等）。
func (d *Dispatcher) probeEmptyResult(ctx context.Context, handle string) *model.ScanFailure {
	probe := d.fetcher.ProbeAccountStatus(ctx, handle)

	failure := &model.ScanFailure{AccountHandle: handle}
	switch probe.Kind {
	case model.ProbeOK:
		failure.ReasonCode = model.ErrCodeEmptyResult
		failure.Message = "公開投稿が見つかりませんでした"
	case model.ProbeHTTPError:
		failure.ReasonCode = model.ErrCodeHTTPError
		failure.Message = probe.Message
	case model.ProbeAPIError:
		failure.ReasonCode = model.ErrCodeAPIError
		failure.Message = probe.Message
	default:
		failure.ReasonCode = model.ErrCodeNetworkError
		failure.Message = probe.Message
	}

	d.logger.Warn("ハンドルの投稿が空でした",
		slog.String("handle", handle),
		slog.String("probe_kind", string(probe.Kind)),
		slog.String("reason_code", failure.ReasonCode),
	)

	return failure
}

// normalizeHandles は入力ハンドルを正規化し、順序を保存して重複と空文字列を除去する。
func normalizeHandles(handles []string) []string {
	seen := make(map[string]bool, len(handles))
	result := make([]string, 0, len(handles))
	for _, raw := range handles {
		h := model.NormalizeHandle(raw)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		result = append(result, h)
	}
	return result
}

// sleepContext はコンテキストのキャンセルを尊重して待機する。
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
